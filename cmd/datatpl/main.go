package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/neurodesk/datatpl/pkg/document"
	"github.com/neurodesk/datatpl/pkg/render"
	"github.com/neurodesk/datatpl/pkg/templates"
	v "github.com/neurodesk/datatpl/pkg/validator"
)

type datatplConfig struct {
	TemplateDirs []string `mapstructure:"template_dirs"`
	CacheDir     string   `mapstructure:"cache_dir"`
	Format       string   `mapstructure:"format"`
	MaxChain     int      `mapstructure:"max_chain"`
	Builtin      bool     `mapstructure:"builtin"`
}

func (c *datatplConfig) Validate() error {
	return v.All(
		v.Map(c.TemplateDirs, func(dir string, desc string) error {
			return v.NotEmpty(dir, desc)
		}, "template_dirs"),
		v.NotEmpty(c.CacheDir, "cache_dir"),
		v.MatchesAllowed(document.Format(c.Format), document.OutputFormats, "format"),
		v.Positive(c.MaxChain, "max_chain"),
	)
}

func (c *datatplConfig) renderOptions() render.Options {
	return render.Options{MaxChain: c.MaxChain, Logger: slog.Default()}
}

// loadRegistry loads the builtin templates, then every configured
// directory in order so later directories override earlier ones.
func (c *datatplConfig) loadRegistry() (*templates.Registry, error) {
	reg := templates.NewRegistry(slog.Default())
	if c.Builtin {
		if err := reg.LoadFS(templates.Builtin); err != nil {
			return nil, fmt.Errorf("loading builtin templates: %w", err)
		}
	}
	for _, dir := range c.TemplateDirs {
		if err := reg.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("template_dirs", []string{})
	vp.SetDefault("cache_dir", filepath.Join("local", "httpcache"))
	vp.SetDefault("format", string(document.YAML))
	vp.SetDefault("max_chain", render.DefaultMaxChain)
	vp.SetDefault("builtin", true)
}

// readConfig locates and reads the config file. An explicitly named file
// must exist; the default datatpl.yaml is optional.
func readConfig(vp *viper.Viper, path string) error {
	setDefaults(vp)
	vp.SetEnvPrefix("DATATPL")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vp.AutomaticEnv()

	if path == "" {
		path = os.Getenv("DATATPL_CONFIG")
	}
	if path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}

	vp.AddConfigPath(".")
	vp.SetConfigName("datatpl")
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func decodeConfig(vp *viper.Viper) (datatplConfig, error) {
	var cfg datatplConfig
	if err := vp.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// bindFlags ties config keys to the flags that override them.
func bindFlags(vp *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := vp.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %q: %v", name, err))
		}
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

var (
	rootConfigPath string
	verbose        bool
	config         datatplConfig
)

var rootCmd = cobra.Command{
	Use:           "datatpl",
	Short:         "Render data templates that reference each other",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verbose)
		vp := viper.GetViper()
		if err := readConfig(vp, rootConfigPath); err != nil {
			return err
		}
		cfg, err := decodeConfig(vp)
		if err != nil {
			return err
		}
		if used := vp.ConfigFileUsed(); used != "" {
			slog.Debug("using config file", "path", used)
		}
		config = cfg
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootConfigPath, "config", "", "Path to configuration file (default ./datatpl.yaml, or DATATPL_CONFIG)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringSlice("template-dir", nil, "Directory of template documents; may be repeated")
	flags.String("cache-dir", "", "Directory for downloaded reference documents")
	flags.Int("max-chain", 0, "Maximum reference hops per value")

	bindFlags(viper.GetViper(), flags, map[string]string{
		"template_dirs": "template-dir",
		"cache_dir":     "cache-dir",
		"max_chain":     "max-chain",
	})

	rootCmd.AddCommand(&renderCmd)
	rootCmd.AddCommand(&checkCmd)
	rootCmd.AddCommand(&listCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("fatal", "error", err)
		stop()
		os.Exit(1)
	}
}
