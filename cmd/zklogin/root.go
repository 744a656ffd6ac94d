package main

import (
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yawdotio/totalbeginers-Suitters/config"
	"github.com/yawdotio/totalbeginers-Suitters/ledger"
	"github.com/yawdotio/totalbeginers-Suitters/login"
	"github.com/yawdotio/totalbeginers-Suitters/oauth"
	"github.com/yawdotio/totalbeginers-Suitters/prover"
	"github.com/yawdotio/totalbeginers-Suitters/salt"
	"github.com/yawdotio/totalbeginers-Suitters/session"
)

type app struct {
	cfg    *config.Client
	flow   *login.Flow
	closer io.Closer
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "zklogin",
		Short:         "Sign in to a Sui wallet with an OAuth account",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "zklogin.yaml", "Path to the client config file")

	open := func(cmd *cobra.Command) (*app, error) {
		return newApp(cfgPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	cmd.AddCommand(
		newLoginCmd(open),
		newCompleteCmd(open),
		newStatusCmd(open),
		newLogoutCmd(open),
		newAddressCmd(open),
		newSignCmd(open),
		newSubmitCmd(open),
	)
	return cmd
}

type opener func(cmd *cobra.Command) (*app, error)

func newApp(cfgPath string, out, logOut io.Writer) (*app, error) {
	cfg, err := config.LoadClient(cfgPath)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: logOut}).Level(level).With().Timestamp().Logger()

	backend, closer, err := openBackend(cfg.Session)
	if err != nil {
		return nil, err
	}

	chain := ledger.NewClient(cfg.FullnodeURL, cfg.Timeout)
	flow := login.NewFlow(login.Deps{
		Store:     session.NewStore(backend),
		Ledger:    chain,
		Salts:     salt.NewClient(cfg.SaltURL, cfg.Timeout),
		Prover:    prover.NewClient(cfg.ProverURL, cfg.Timeout, logger),
		Navigator: oauth.WriterNavigator{W: out},
		OAuth: oauth.Config{
			ClientID:    cfg.ClientID,
			RedirectURI: cfg.RedirectURI,
		},
		Logger: logger,
	})
	return &app{cfg: cfg, flow: flow, closer: closer}, nil
}

func openBackend(cfg config.SessionConfig) (session.Backend, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return session.NewRedisBackend(client, cfg.Namespace), client, nil
	case config.BackendSealed:
		b, err := session.NewSealedFileBackend(cfg.Path, []byte(cfg.Passphrase), session.DefaultScryptN)
		return b, nil, err
	default:
		b, err := session.NewSQLiteBackend(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
}
