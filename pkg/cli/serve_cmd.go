package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"courtql/internal/api"
)

func newServeCmd(envFile *string) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cfg, cleanup, err := bootstrap(cmd.Context(), *envFile, os.Stdout)
			if err != nil {
				return err
			}
			defer cleanup()

			a.Start()
			defer a.Stop()

			addr := cfg.ListenAddr
			if cmd.Flags().Changed("listen") {
				addr = listenAddr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(a.Handler, cfg.CORSAllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "HTTP API listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "Listen address, overrides LISTEN_ADDR")

	return cmd
}
