// Package app implements the optset command tree.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/activity"
	"github.com/goliatone/go-optset/pkg/logging/zaplog"
	"github.com/goliatone/go-optset/pkg/schemafile"
	"github.com/goliatone/go-optset/pkg/state"
)

const (
	appName        = "optset"
	appDescription = `optset reads an option set declared in a schema file and
operates on its backing store.

Examples:
  # Print every value of the set
  optset --schema server.yaml show

  # Change a value and persist it
  optset --schema server.yaml set port 9090

  # Point the set at another properties file
  optset --schema server.yaml --file ./local.properties show --non-default

Configuration:
  Flags may also be given as environment variables with the OPTSET_ prefix,
  for example OPTSET_SCHEMA=/etc/myapp/server.yaml.`
)

var errNoSchema = errors.New("optset: --schema is required")

// Options holds the global flags.
type Options struct {
	Schema   string `mapstructure:"schema"`
	File     string `mapstructure:"file"`
	LogLevel string `mapstructure:"log-level"`
	Engine   string `mapstructure:"engine"`
}

// AddFlags registers the global flags on fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Schema, "schema", "s", o.Schema, "Path to the schema file (yaml, json or toml)")
	fs.StringVarP(&o.File, "file", "f", o.File, "Backing file, overriding the schema's provider")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&o.Engine, "engine", o.Engine, "Expression engine, overriding the schema: "+strings.Join(opts.Engines(), ", "))
}

// Validate checks that the options can be used to open a set.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Schema) == "" {
		return errNoSchema
	}
	return nil
}

type cli struct {
	options   Options
	v         *viper.Viper
	out       io.Writer
	logger    *zap.Logger
	fileOpts  []state.FileOption
	schemaOpt []schemafile.Option
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	c := &cli{
		options: Options{LogLevel: "warn"},
		v:       viper.New(),
		out:     out,
		logger:  zap.NewNop(),
	}
	return c.command(errOut)
}

func (c *cli) command(errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:               appName,
		Short:             "Inspect and edit typed option sets",
		Long:              appDescription,
		SilenceUsage:      true,
		PersistentPreRunE: c.preRun,
	}
	cmd.SetOut(c.out)
	cmd.SetErr(errOut)
	c.options.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		c.showCommand(),
		c.getCommand(),
		c.setCommand(),
		c.resetCommand(),
		c.schemaCommand(),
		c.evalCommand(),
	)
	return cmd
}

func (c *cli) preRun(cmd *cobra.Command, _ []string) error {
	c.v.SetEnvPrefix(strings.ToUpper(appName))
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("optset: bind flags: %w", err)
	}
	if err := c.v.Unmarshal(&c.options); err != nil {
		return fmt.Errorf("optset: read options: %w", err)
	}
	logger, err := zaplog.NewConsole(c.options.LogLevel)
	if err != nil {
		return fmt.Errorf("optset: build logger: %w", err)
	}
	c.logger = logger
	return nil
}

// open builds the set from the schema, loads it and returns a release func.
func (c *cli) open(ctx context.Context) (*opts.Set, func(), error) {
	if err := c.options.Validate(); err != nil {
		return nil, nil, err
	}
	schema, err := schemafile.Load(c.options.Schema, append([]schemafile.Option{schemafile.WithEnv()}, c.schemaOpt...)...)
	if err != nil {
		return nil, nil, err
	}
	if c.options.File != "" {
		overrideFile(&schema.Document.Provider, c.options.File)
	}
	if c.options.Engine != "" {
		schema.Document.Engine = c.options.Engine
	}

	log := zaplog.New(c.logger)
	setOptions := append(log.SetOptions(), opts.WithActivityHooks(activity.Hooks{log}))
	set, closer, err := schema.NewSetWithFileOptions(c.fileOpts, setOptions...)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		_ = closer.Close()
		_ = c.logger.Sync()
	}
	if _, err := set.Load(ctx, false); err != nil {
		release()
		return nil, nil, err
	}
	return set, release, nil
}

func overrideFile(spec *schemafile.ProviderSpec, file string) {
	switch strings.ToLower(spec.Kind) {
	case "file", "json":
	default:
		spec.Kind = "file"
		if strings.EqualFold(filepath.Ext(file), ".json") {
			spec.Kind = "json"
		}
	}
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	spec.Path = filepath.Dir(file)
	spec.Filename = filepath.Base(file)
}
