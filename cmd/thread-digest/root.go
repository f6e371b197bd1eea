package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theimaginaryfoundation/thread-digest/digest"
	"github.com/theimaginaryfoundation/thread-digest/digest/provider"
	"github.com/theimaginaryfoundation/thread-digest/internal/logging"
)

// app carries state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     Config

	newCompleter func(Config) (digest.Completer, error)
}

func newApp() *app {
	return &app{
		v:            viper.New(),
		newCompleter: openAICompleter,
	}
}

func openAICompleter(cfg Config) (digest.Completer, error) {
	return provider.NewOpenAI(provider.OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
}

func (a *app) rootCmd() *cobra.Command {
	def := defaultConfig()
	root := &cobra.Command{
		Use:   "thread-digest",
		Short: "Turn discussion threads into generated articles with content classification stats",
		Long: `thread-digest samples the posts of each thread, asks a language model for a headline and
a short article quoting the sampled posts, and counts how many posts match a content criterion.

Jobs checkpoint after every thread to <data-dir>/progress.json and resume from it when restarted.
The finished batch is written atomically to <data-dir>/articles.json.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v, a.cfgFile, cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, _ := logging.ParseLevel(cfg.LogLevel)
			logging.Init(level, cfg.LogFormat, cmd.ErrOrStderr())
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./thread-digest.yaml)")
	pf.String("data-dir", def.DataDir, "analysis data directory (checkpoint, output, lock, archive)")
	pf.String("archive", "", "SQLite thread archive (default: <data-dir>/threads.db)")
	pf.String("log-level", def.LogLevel, "log level: debug, info, warn or error")
	pf.String("log-format", def.LogFormat, "log format: text or json")
	pf.Bool("pretty", def.Pretty, "indent written JSON files")

	root.AddCommand(a.generateCmd(), a.importCmd(), a.statsCmd(), a.schemaCmd())
	return root
}

// addThreadSourceFlags registers the flags that select which threads a command reads.
func addThreadSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("threads", "", "thread dump file or directory (default: read the archive)")
	cmd.Flags().Int("max-threads", 0, "process at most this many threads (0 = all)")
}
