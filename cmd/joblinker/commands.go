package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"joblinker/internal/app"
	"joblinker/internal/auth/client"
	"joblinker/internal/auth/models"
	"joblinker/internal/guard"
)

var errNotLoggedIn = errors.New("not logged in; run joblinker login")

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if password == "" {
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			a, err := c.open()
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			current, err := a.Service.Login(cmd.Context(), models.LoginRequest{Email: email, Password: password})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", current.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var req models.RegisterRequest
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; a verification email follows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			req.Role = models.Role(strings.ToLower(role))
			if req.Password == "" {
				if req.Password, err = readLine(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			a, err := c.open()
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			registered, err := a.Service.Register(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s account for %s. Check your email to verify it.\n", registered, req.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (read from stdin when empty)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleCandidate), "candidate or recruiter")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newVerifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Redeem an email verification token and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			current, err := a.Service.Verify(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Email verified. Logged in as %s\n", current.Role)
			return nil
		},
	}
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the cookie profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			// logout needs a token for the server call; restore one if the
			// cookie is still good
			a.Guard.Await(cmd.Context())
			a.Service.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			if err := requireSession(cmd, a); err != nil {
				return err
			}
			profile, err := a.Profiles().Me(cmd.Context(), "")
			if err != nil {
				return describe(err)
			}
			current := a.Sessions.CurrentUser()
			role := profile.Role
			if role == "" {
				role = current.Role
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", profile.Name, profile.Email, role)
			if exp, ok := client.TokenExpiry(current.AccessToken); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "access token expires in %s\n", time.Until(exp).Round(time.Second))
			}
			return nil
		},
	}
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET an API path with the session's credentials",
		Example: `  joblinker get jobs
  joblinker get "jobs?status=open"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			if err := requireSession(cmd, a); err != nil {
				return err
			}
			path, query, _ := strings.Cut(args[0], "?")
			target := a.Backend.Endpoint(path)
			target.RawQuery = query

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target.String(), nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "application/json")
			resp, err := a.HTTP.Do(req)
			if err != nil {
				return fmt.Errorf("GET %s: %w", path, err)
			}
			defer resp.Body.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("GET %s: %s", path, resp.Status)
			}
			return nil
		},
	}
}

// requireSession is the CLI's route guard: restore the session once and
// refuse to continue without one.
func requireSession(cmd *cobra.Command, a *app.App) error {
	if a.Guard.Await(cmd.Context()) != guard.Render {
		return errNotLoggedIn
	}
	return nil
}

func describe(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.Message)
	}
	return err
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
