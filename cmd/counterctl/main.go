package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"LiveCounter/pkg/client"
	"LiveCounter/pkg/configs"
	"LiveCounter/pkg/source"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var (
	addr    string
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "counterctl",
		Short:         "Control a live counter daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "localhost:"+configs.DefaultPort, "daemon address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		simpleCmd("start", "Start streaming", func(ctx context.Context, c *client.StreamClient) (interface{}, error) {
			return c.Start(ctx)
		}),
		simpleCmd("stop", "Stop streaming", func(ctx context.Context, c *client.StreamClient) (interface{}, error) {
			return c.Stop(ctx)
		}),
		simpleCmd("status", "Show stream status", func(ctx context.Context, c *client.StreamClient) (interface{}, error) {
			return c.Status(ctx)
		}),
		simpleCmd("config", "Show the non-sensitive configuration", func(ctx context.Context, c *client.StreamClient) (interface{}, error) {
			return c.Config(ctx)
		}),
		simpleCmd("metric", "Show the current metric value", func(ctx context.Context, c *client.StreamClient) (interface{}, error) {
			return c.Metric(ctx)
		}),
		simpleCmd("test", "Run a short connectivity test push", func(ctx context.Context, c *client.StreamClient) (interface{}, error) {
			res, err := c.TestConnectivity(ctx)
			if err == nil && !res.Success {
				printJSON(res)
				return nil, fmt.Errorf("connectivity test failed with code %d", res.ReturnCode)
			}
			return res, err
		}),
		simpleCmd("audio", "List background audio files", func(ctx context.Context, c *client.StreamClient) (interface{}, error) {
			return c.Audio(ctx)
		}),
		newTokenCmd(),
	)
	return root
}

func simpleCmd(use, short string, run func(context.Context, *client.StreamClient) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			out, err := run(ctx, client.NewStreamClient(addr, client.WithTimeout(timeout)))
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// newTokenCmd runs the installed-app OAuth flow once and prints the refresh
// token to put in YTB_REFRESH_TOKEN.
func newTokenCmd() *cobra.Command {
	var clientID, clientSecret string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain a YouTube refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" {
				clientID = os.Getenv("YTB_CLIENT_ID")
			}
			if clientSecret == "" {
				clientSecret = os.Getenv("YTB_CLIENT_SECRET")
			}
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("--client-id and --client-secret (or YTB_CLIENT_ID and YTB_CLIENT_SECRET) are required")
			}
			conf := source.OAuthConfig(clientID, clientSecret)
			url := conf.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL and authorize the channel:\n\n%s\n\nPaste the authorization code: ", url)

			code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && code == "" {
				return fmt.Errorf("read authorization code: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			tok, err := conf.Exchange(ctx, strings.TrimSpace(code))
			if err != nil {
				return fmt.Errorf("exchange authorization code: %w", err)
			}
			if tok.RefreshToken == "" {
				return fmt.Errorf("no refresh token returned; revoke the app's access and retry")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nYTB_REFRESH_TOKEN=%s\n", tok.RefreshToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret")
	return cmd
}
