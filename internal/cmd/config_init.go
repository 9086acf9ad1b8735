package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/quipkit/quipkit/internal/config"
	apperrors "github.com/quipkit/quipkit/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the quipkit config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")

		path = strings.TrimSpace(path)
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return apperrors.NewConfigInvalidError("could not resolve a config directory; pass --path")
		}

		exists, err := afero.Exists(appFs, path)
		if err != nil {
			return err
		}
		if exists && !force {
			return apperrors.NewInvalidInputError(fmt.Sprintf("%s already exists; use --force to overwrite", path))
		}

		data, err := config.Template()
		if err != nil {
			return err
		}
		if err := appFs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := afero.WriteFile(appFs, path, data, 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		lines := []string{
			"Config written",
			"",
			"Path:  " + path,
			"Token: set api.token or QUIPKIT_API_TOKEN",
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("path", "", "config file to write (default is $XDG_CONFIG_HOME/quipkit/config.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
