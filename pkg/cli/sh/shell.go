package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/chanmux/pkg/chanmux"
	env "github.com/robotalks/chanmux/pkg/env/client"
	"github.com/robotalks/chanmux/pkg/rpc"
	"github.com/robotalks/chanmux/pkg/transport/mqtt"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Client *rpc.Client
	Addr   string
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&ChannelsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Client == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Print prints v as JSON in JSON mode, or the text otherwise.
func Print(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// FormatMeta prints Meta into friendly string for display.
func FormatMeta(meta mqtt.Meta) string {
	s := fmt.Sprintf("%s: channels %v", meta.Name, meta.Channels)
	if meta.RPC != "" {
		s += " rpc " + meta.RPC
	}
	if meta.Websocket != "" {
		s += " ws " + meta.Websocket
	}
	return s
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect connects to the daemon at addr.
func (s *Shell) Connect(addr string) error {
	client, err := rpc.Dial(addr)
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Client, s.Addr = client, addr
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", addr))
	return nil
}

// Disconnect disconnects current daemon.
func (s *Shell) Disconnect() {
	if s.Client != nil {
		s.Client.Close()
		s.Client, s.Addr = nil, ""
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect {
		addr, err := s.Config.Resolve(context.Background())
		if err != nil {
			log.Fatalln(err)
		}
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", addr)
		}
		if err := s.Connect(addr); err != nil {
			log.Fatalf("connect %q failed: %v", addr, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers announced instances.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			metas, err := s.Config.Discover(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if metas == nil {
					metas = []mqtt.Meta{}
				}
				Print(c, metas, "")
				return
			}
			if len(metas) == 0 {
				c.Println("No instances found")
				return
			}
			for _, meta := range metas {
				c.Println(FormatMeta(meta))
			}
		},
	}

	// ConnectCmd connects a daemon.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "URL|INSTANCE",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			addr := s.Config.ServerURL
			if len(c.Args) > 0 {
				addr = c.Args[0]
				if !strings.Contains(addr, "://") {
					metas, err := s.Config.Discover(context.Background())
					if err != nil {
						c.Err(err)
						return
					}
					if addr, err = env.SelectServer(metas, c.Args[0]); err != nil {
						c.Err(err)
						return
					}
				}
			}
			if err := s.Connect(addr); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current daemon.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// ChannelsCmd lists configured channels.
	ChannelsCmd = ishell.Cmd{
		Name:    "channels",
		Aliases: []string{"ch"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			chs, err := ShellFrom(c).Client.Channels()
			if err != nil {
				c.Err(err)
				return
			}
			ids := make([]int, len(chs))
			for n, ch := range chs {
				ids[n] = int(ch)
			}
			Print(c, ids, fmt.Sprint(ids))
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}

// ParseChannel parses a channel id argument.
func ParseChannel(arg string) (chanmux.ChannelID, error) {
	var id uint
	if _, err := fmt.Sscan(arg, &id); err != nil || id > 0xff {
		return 0, fmt.Errorf("invalid channel %q", arg)
	}
	return chanmux.ChannelID(id), nil
}
