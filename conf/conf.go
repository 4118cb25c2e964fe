// Package conf loads the server's configuration: a required TCP port
// from the command line, layered on top of defaults that may themselves
// be overridden by an optional TOML file.
package conf

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// TCPConf groups the knobs that govern the packet codec's behavior on
// the wire.
type TCPConf struct {
	Retries uint `toml:"retries"`
	Timeout uint `toml:"timeout"`
}

// Conf is the complete, resolved server configuration.
type Conf struct {
	Port        uint   `toml:"port"`
	StartRating int    `toml:"start_rating"`
	MaxClients  uint   `toml:"max_clients"`
	TCP         TCPConf `toml:"tcp"`
	Debug       bool   `toml:"debug"`

	file string
}

// Default is the configuration used when no file is loaded and no flags
// override it, apart from Port, which has no sane default and must
// always come from -p.
var Default = Conf{
	StartRating: 1500,
	MaxClients:  64,
	TCP: TCPConf{
		Retries: 8,
		Timeout: 20,
	},
}

// ErrUsage is returned by Parse when argument parsing failed or -p was
// missing/invalid; the caller should print usage and exit non-zero.
type ErrUsage struct{ Reason string }

func (e *ErrUsage) Error() string { return e.Reason }

// Parse parses args (typically os.Args[1:]) into a Conf, starting from
// Default, optionally overlaid by an -conf TOML file, then by -p/-debug
// flags. Usage text is written to out on any flag error. Flags always
// win over a loaded file. No file is read unless -conf is given, and a
// -conf file that cannot be read is an error.
func Parse(args []string, out io.Writer) (*Conf, error) {
	fs := flag.NewFlagSet("tictactoeserver", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		port       uint
		confFile   string
		debug      bool
		dumpConfig bool
	)
	fs.UintVar(&port, "p", 0, "TCP port to listen on (required)")
	fs.StringVar(&confFile, "conf", "", "Optional TOML configuration file")
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&dumpConfig, "dump-config", false, "Write the active configuration as TOML to stdout and exit")

	if err := fs.Parse(args); err != nil {
		return nil, &ErrUsage{Reason: err.Error()}
	}

	conf := Default
	if confFile != "" {
		if _, err := toml.DecodeFile(confFile, &conf); err != nil {
			return nil, fmt.Errorf("conf: loading %s: %w", confFile, err)
		}
		conf.file = confFile
	}

	if debug {
		conf.Debug = true
	}
	if port != 0 {
		conf.Port = port
	}

	if dumpConfig {
		if err := conf.Dump(os.Stdout); err != nil {
			return nil, fmt.Errorf("conf: dumping configuration: %w", err)
		}
		return nil, flag.ErrHelp
	}

	if port == 0 || port > 65535 {
		fs.Usage()
		return nil, &ErrUsage{Reason: "missing or invalid -p <port>"}
	}

	return &conf, nil
}

// Dump serializes conf as TOML.
func (c *Conf) Dump(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
