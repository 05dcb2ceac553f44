package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/dehost-labs/dehost/internal/cliconfig"
	"github.com/dehost-labs/dehost/internal/dehostclient"
	"github.com/dehost-labs/dehost/internal/output"
	"github.com/dehost-labs/dehost/internal/pairing"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Pair this CLI with your dehost account",
	GroupID: "auth",
	Long: `Registers a one-time pairing code with the dehost server and opens the
dashboard in your browser. Enter the code shown here on that page; the browser
reports back to a listener on 127.0.0.1 and the CLI stores the paired session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cliconfig.GetCallbackPort()
		}
		server := serverURL(cmd)

		if !yes {
			ok, err := output.Confirm("Open your browser to log in to dehost?", true)
			if err != nil {
				return err
			}
			if !ok {
				output.Subtle("Login cancelled.")
				return nil
			}
		}

		client := dehostclient.New(server)
		o := pairing.New(pairing.Config{
			ListenAddr: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
			PairingURL: client.PairingURL(),
			Timeout:    timeout,
		}, client, nil)
		o.OnState = func(s pairing.State) {
			switch s {
			case pairing.StateCodeGenerated:
				fmt.Println("Your pairing code:")
				fmt.Println(output.Code(o.Code()))
			case pairing.StateAwaitingCallback:
				output.Subtle("Waiting for confirmation in your browser (up to %s)...", timeout)
			}
		}
		o.OnBrowserError = func(url string, err error) {
			output.Warning("%v", err)
			fmt.Printf("Open this page to continue: %s\n", output.Link(url))
		}

		res, err := o.Run(cmd.Context())
		reportLogin(res, err, timeout)

		if err == nil {
			if saveErr := cliconfig.SaveSession(&cliconfig.Session{
				Code:      res.Code,
				Token:     res.Session,
				ServerURL: server,
				PairedAt:  time.Now().UTC(),
			}); saveErr != nil {
				return fmt.Errorf("save session: %w", saveErr)
			}
		}

		// A listener that would not close can keep the process alive.
		if res != nil && res.ShutdownErr != nil {
			output.Warning("callback listener did not shut down cleanly: %v", res.ShutdownErr)
			os.Exit(pairing.ExitCode(err))
		}

		if pairing.ExitCode(err) == 0 {
			return nil
		}
		return err
	},
}

func reportLogin(res *pairing.Result, err error, timeout time.Duration) {
	var terr *pairing.TransportError
	var verr *pairing.ValidationError
	switch {
	case err == nil:
		output.Success("Logged in. This machine is paired with your dehost account.")
	case errors.Is(err, pairing.ErrCancelled):
		output.Warning("Login cancelled.")
	case errors.Is(err, pairing.ErrTimeout):
		output.Error("No confirmation from the browser within %s.", timeout)
	case errors.Is(err, pairing.ErrCallbackFailed):
		output.Error("The browser reported that the code could not be verified.")
	case errors.As(err, &verr):
		output.Error("The server rejected the pairing code: %s", verr.Reason)
	case errors.As(err, &terr) && terr.Op == pairing.OpBind:
		output.Error("Port is in use; retry with --port.")
	}
	if res != nil {
		output.Subtle("attempt %s ended in state %s", res.AttemptID, res.State)
	}
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the paired session",
	GroupID: "auth",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cliconfig.ClearSession(); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show whether this CLI is paired",
	GroupID: "auth",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := cliconfig.LoadSession()
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if sess == nil {
			fmt.Println("Not logged in. Run `dehost login` to pair this machine.")
			return nil
		}

		server := sess.ServerURL
		if cmd.Flags().Changed("server") || server == "" {
			server = serverURL(cmd)
		}

		client := dehostclient.New(server)
		if _, err := client.HealthCheck(cmd.Context()); err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}

		state := "paired"
		if sess.Token == "" {
			state = "session predates this CLI version (run `dehost login` again)"
		} else {
			verified, err := client.IsVerified(cmd.Context(), sess.Code, sess.Token)
			if err != nil {
				return fmt.Errorf("check pairing: %w", err)
			}
			if !verified {
				state = "not verified (run `dehost login` again)"
			}
		}
		fmt.Println(output.KeyValue([][2]string{
			{"Server", server},
			{"Code", maskCode(sess.Code)},
			{"Paired", output.FormatTimeAgo(sess.PairedAt)},
			{"Status", state},
		}))
		return nil
	},
}

// maskCode hides all but the first two digits of a session code.
func maskCode(code string) string {
	if len(code) <= 2 {
		return code
	}
	return code[:2] + "****"
}

func init() {
	loginCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	loginCmd.Flags().Duration("timeout", pairing.DefaultTimeout, "How long to wait for browser confirmation")
	loginCmd.Flags().Int("port", cliconfig.DefaultCallbackPort, "Local port for the browser callback")
	loginCmd.Flags().AddFlagSet(serverFlags())
	statusCmd.Flags().AddFlagSet(serverFlags())

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
}
