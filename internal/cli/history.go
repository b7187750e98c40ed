package cli

import (
	"io"

	"classroom-poll-service/internal/app"
	"classroom-poll-service/internal/config"
	"github.com/spf13/cobra"
)

// NewHistoryCmd prints the persisted poll history from the configured backend.
func NewHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the persisted poll history as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			b, err := openBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			history := app.NewHistory(b.history, logger)
			history.Load(ctx)
			data, err := app.EncodeHistory(history.All())
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), data)
		},
	}
}

func writeHistory(w io.Writer, data []byte) error {
	_, err := w.Write(append(data, '\n'))
	return err
}
