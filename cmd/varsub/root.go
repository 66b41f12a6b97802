package main

import (
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-varsub/internal/afshost"
	"github.com/goliatone/go-varsub/pkg/config"
	"github.com/goliatone/go-varsub/pkg/prompt"
	"github.com/goliatone/go-varsub/pkg/store"
)

// app carries the state shared by every subcommand.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath  string
	storePath   string
	allow       []string
	verbose     bool
	interactive bool

	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "varsub",
		Short: "Fill {{placeholders}} in templates with text and file contents",
		Long: `varsub keeps named variables whose values are literal text, files or
directories, and substitutes them into templates. File contents are read
at render time, escaped and wrapped in a tag named after the file.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvConfig+")")
	flags.StringVar(&a.storePath, "store", "", "variable store path or afs URL (overrides config)")
	flags.StringSliceVar(&a.allow, "allow", nil, "extra roots readable without asking")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&a.interactive, "interactive", "i", false, "prompt to locate missing files and to grant access")

	root.AddCommand(
		newRenderCmd(a),
		newCheckCmd(a),
		newVarsCmd(a),
		newTemplatesCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.logger, err = a.buildLogger(); err != nil {
		return err
	}

	path := a.cfg.Store.Path
	if a.storePath != "" {
		path = a.storePath
	}
	a.store, err = store.OpenFile(cmd.Context(), path, store.WithStoreOptions(store.WithLogger(a.logger)))
	if err != nil {
		return err
	}
	a.logger.Debug("store opened", zap.String("path", path))
	return nil
}

func (a *app) buildLogger() (*zap.Logger, error) {
	level, err := a.cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// host builds the afs host. Without configured roots the working directory
// is readable; interactive runs prompt for picks and consent.
func (a *app) host() *afshost.Host {
	roots := append(append([]string(nil), a.cfg.Host.AllowedRoots...), a.allow...)
	if len(roots) == 0 {
		if wd, err := os.Getwd(); err == nil {
			roots = append(roots, wd)
		}
	}
	options := []afshost.Option{
		afshost.WithAllowedRoots(roots...),
		afshost.WithLogger(a.logger),
	}
	if a.interactive {
		options = append(options, afshost.WithDriver(a.driver()))
	} else {
		options = append(options, afshost.WithPicker(afshost.AcceptSuggested))
	}
	return afshost.New(options...)
}

// driver prompts on stderr so rendered output on stdout stays clean.
func (a *app) driver() prompt.Driver {
	options := []prompt.SurveyOption{prompt.WithOutput(a.errOut)}
	in, inOK := a.in.(terminal.FileReader)
	out, outOK := a.errOut.(terminal.FileWriter)
	if inOK && outOK {
		options = append(options, prompt.WithStdio(in, out, a.errOut))
	}
	return prompt.NewSurveyDriver(options...)
}
