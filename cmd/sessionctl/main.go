package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/internal/logging"
	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/filestore"
	"github.com/jrsteele09/go-session-client/storage/memstore"
	"github.com/jrsteele09/go-session-client/storage/redisstore"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/users"
	"github.com/rs/zerolog"
)

const usage = `usage: sessionctl <command> [flags]

commands:
  status                                   show the restored session
  login    -email E -password P            log in
  register -name N -email E -password P -country C [-role R]
  logout                                   end the session
  me                                       reload and print the profile
  refresh                                  exchange the refresh token
  forgot   -email E                        request a password reset email
  reset    -token T -password P            set a new password
  save     <businessId>                    save a business
  unsave   <businessId>                    remove a saved business
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, c.LogLevel, c.IsDev())
	logging.SetGlobal(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStorage(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := newManager(c, st, logger, out)
	if err != nil {
		return err
	}
	if err := m.Initialize(ctx); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		displayAppname(c.AppName)
		printSnapshot(out, m.Snapshot())
		return nil
	case "login":
		return runLogin(ctx, m, rest, out)
	case "register":
		return runRegister(ctx, m, rest, out)
	case "logout":
		return m.Logout(ctx)
	case "me":
		snap, err := m.FetchProfile(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, snap.User)
	case "refresh":
		snap, err := m.Refresh(ctx)
		if err != nil {
			return err
		}
		printSnapshot(out, snap)
		return nil
	case "forgot":
		return runForgot(ctx, m, rest)
	case "reset":
		return runReset(ctx, m, rest)
	case "save", "unsave":
		if len(rest) != 1 {
			fmt.Fprint(os.Stderr, usage)
			return errUsage
		}
		change := m.SaveBusiness
		if cmd == "unsave" {
			change = m.RemoveBusiness
		}
		snap, err := change(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved businesses: %d\n", len(snap.User.MySavedBusinesses))
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}
}

func newManager(c *config.Config, st storage.Storage, logger zerolog.Logger, out io.Writer) (*session.Manager, error) {
	gw := gateway.New(c.APIBaseURL,
		gateway.WithTimeout(c.HTTPTimeout()),
		gateway.WithAuthScheme(c.AuthScheme),
		gateway.WithLogger(logger),
	)

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithNotifier(session.NotifierFunc(func(level session.Level, message string) {
			fmt.Fprintf(out, "[%s] %s\n", level, message)
		})),
	}
	if !c.RegisterAutoLogin {
		opts = append(opts, session.WithRegisterPolicy(session.RegisterRequireLogin))
	}

	pem, err := c.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("read token public key: %w", err)
	}
	if pem != "" {
		v, err := token.NewVerifier(token.VerifierConfig{PublicKeyPEM: pem, Issuer: c.TokenIssuer})
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithVerifier(v))
	}

	return session.New(gw, credentials.NewStore(st, credentials.WithLogger(logger)), opts...), nil
}

func openStorage(ctx context.Context, c *config.Config) (storage.Storage, func(), error) {
	noop := func() {}
	switch c.StoreBackend {
	case config.StoreMemory:
		return memstore.New(), noop, nil
	case config.StoreRedis:
		rc := redisstore.DefaultConfig()
		rc.Addr = c.RedisAddr
		rc.Password = c.RedisPassword
		rc.DB = c.RedisDB
		rc.KeyPrefix = c.RedisKeyPrefix
		s, err := redisstore.New(ctx, rc)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s, err := filestore.New(c.StorePath)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	}
}

func runLogin(ctx context.Context, m *session.Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	snap, err := m.Login(ctx, users.LoginCredentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	printSnapshot(out, snap)
	return nil
}

func runRegister(ctx context.Context, m *session.Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	country := fs.String("country", "", "country")
	role := fs.String("role", "", "user or business")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	snap, err := m.Register(ctx, users.RegisterCredentials{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Country:  *country,
		Role:     users.RoleType(*role),
	})
	if err != nil {
		return err
	}
	printSnapshot(out, snap)
	return nil
}

func runForgot(ctx context.Context, m *session.Manager, args []string) error {
	fs := flag.NewFlagSet("forgot", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	_, err := m.ForgotPassword(ctx, users.ForgotPasswordCredentials{Email: *email})
	return err
}

func runReset(ctx context.Context, m *session.Manager, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	resetToken := fs.String("token", "", "token from the reset email")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	_, err := m.ResetPassword(ctx, users.ResetPasswordCredentials{Token: *resetToken, Password: *password})
	return err
}

func printSnapshot(out io.Writer, snap session.Snapshot) {
	fmt.Fprintf(out, "status: %s\n", snap.Status)
	if snap.Error != "" {
		fmt.Fprintf(out, "error:  %s\n", snap.Error)
	}
	if snap.User == nil {
		return
	}
	fmt.Fprintf(out, "user:   %s <%s> (%s)\n", snap.User.Name, snap.User.Email, snap.User.ID)
	if created := utils.Value(snap.User.CreatedAt); !created.IsZero() {
		fmt.Fprintf(out, "since:  %s\n", created.Format(time.DateOnly))
	}
	if claims, err := token.Inspect(snap.AccessToken); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "token:  expires %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
