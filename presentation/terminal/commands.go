package terminal

import (
	"fmt"
	"os"

	"shop_replay/infrastructure/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// isTTY checks if stdin and stdout are attached to a terminal
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// cli holds state shared by the commands of one invocation
type cli struct {
	configFile string
	logLevel   string
	ui         *TerminalInterface

	// newInterface is replaced in tests
	newInterface func(cfg *config.Config, logger *logrus.Logger) *TerminalInterface
}

// NewRootCommand - builds the shop_replay command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&cli{newInterface: NewTerminalInterface})
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "shop_replay",
		Short:         "Find search boxes and products on any shop, record the session and compile it to a replay script",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configFile)
			if err != nil {
				return err
			}
			if c.logLevel != "" {
				cfg.LogLevel = c.logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			c.ui = c.newInterface(cfg, cfg.NewLogger())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override LOG_LEVEL")

	root.AddCommand(newRunCommand(c))
	root.AddCommand(newCompileCommand(c))
	return root
}

func newRunCommand(c *cli) *cobra.Command {
	var opts RunOptions
	var headless bool
	var dialect string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search a shop for a product and open it, recording every step",
		Long: "Opens --url, searches for --query and clicks the product image, then optionally\n" +
			"clicks --button entries (add-to-cart, cart, checkout, place-order or any label).\n" +
			"Without --query the command prompts for tasks until 'quit'.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("headless") {
				c.ui.cfg.BrowserHeadless = headless
			}
			if dialect != "" {
				c.ui.cfg.ScriptDialect = dialect
			}
			return c.ui.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.URL, "url", "u", "", "Shop URL to open")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Product to search for")
	cmd.Flags().StringSliceVarP(&opts.Buttons, "button", "b", nil, "Buttons to click after opening the product, in order")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run the browser headless")
	cmd.Flags().StringVar(&dialect, "dialect", "", "Replay script dialect (go or python)")
	return cmd
}

func newCompileCommand(c *cli) *cobra.Command {
	var dialect, out string

	cmd := &cobra.Command{
		Use:   "compile <actions.json>",
		Short: "Compile a recorded action log into a replay script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.ui.Compile(args[0], dialect, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Script written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "", "Script dialect (go or python), defaults to SCRIPT_DIALECT")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, defaults to the output directory")
	return cmd
}
