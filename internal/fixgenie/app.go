package fixgenie

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName        = "fixgenie"
	appDescription = `FixGenie incident intelligence service.

Retrieves resolved production incidents with hybrid search (dense embeddings,
BM25 and TF-IDF), validates semantic agreement and generates grounded answers
for payment platform engineers.`
)

// NewApp creates the root command. Every flag can also be set through the
// environment with the FIXGENIE_ prefix (dots and dashes become underscores).
func NewApp() *cobra.Command {
	opts := NewOptions()

	cmd := &cobra.Command{
		Use:          appName,
		Short:        "FixGenie incident intelligence service",
		Long:         appDescription,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindEnv(cmd); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return Run(opts)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

// bindEnv overlays environment variables onto flags that were not set
// explicitly on the command line.
func bindEnv(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		if v.IsSet(f.Name) {
			if err := f.Value.Set(v.GetString(f.Name)); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("invalid value for %s: %w", f.Name, err)
			}
		}
	})
	return bindErr
}
