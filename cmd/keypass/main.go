package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/config"
	"github.com/pilacorp/go-keypass-sdk/did"
	"github.com/pilacorp/go-keypass-sdk/message"
	"github.com/pilacorp/go-keypass-sdk/server"
	"github.com/pilacorp/go-keypass-sdk/signer"
	"github.com/pilacorp/go-keypass-sdk/verifier"
)

var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("keypass failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "keypass",
		Usage:   "wallet sign-in challenges, signature verification and did:key derivation",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"KEYPASS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides the configured log level",
			},
			&cli.BoolFlag{
				Name:  "json-logs",
				Usage: "write logs as JSON instead of console output",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return setupLogger(c, cfg)
		},
		Commands: []*cli.Command{
			serveCommand(),
			challengeCommand(),
			signCommand(),
			verifyCommand(),
			didCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

func setupLogger(c *cli.Context, cfg *config.Config) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	if !c.Bool("json-logs") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP verification service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "listen address, overrides the config"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if listen := c.String("listen"); listen != "" {
				cfg.ListenAddress = listen
			}

			srv, err := server.New(cfg, server.WithLogger(log.Logger))
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(c.Context)
			g.Go(srv.Start)
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func challengeCommand() *cli.Command {
	return &cli.Command{
		Name:  "challenge",
		Usage: "print a fresh challenge message for an address",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			ch, err := message.NewIssuer().Issue(c.String("address"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, ch.Message)
			return nil
		},
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "sign a challenge with a local key, as a wallet would",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scheme", Value: "sr25519", Usage: "sr25519, ed25519 or evm"},
			&cli.StringFlag{Name: "key", Required: true, Usage: "hex seed (sr25519, ed25519) or private key (evm)", EnvVars: []string{"KEYPASS_SIGNING_KEY"}},
			&cli.StringFlag{Name: "message-file", Aliases: []string{"f"}, Value: "-", Usage: "file holding the message, - for stdin"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			s, err := newSigner(c.String("scheme"), c.String("key"), cfg.SS58Prefix)
			if err != nil {
				return err
			}
			msg, err := readMessage(c, c.String("message-file"))
			if err != nil {
				return err
			}

			sig, err := signer.SignChallenge(s, msg)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]string{
				"address":   s.Address(),
				"chainType": s.Family().String(),
				"signature": sig,
			})
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "verify a signed challenge and print the response",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "message-file", Aliases: []string{"f"}, Value: "-", Usage: "file holding the message, - for stdin"},
			&cli.StringFlag{Name: "signature", Aliases: []string{"s"}, Required: true},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Required: true},
			&cli.StringFlag{Name: "chain-type", Usage: "polkadot (substrate) or ethereum (evm), inferred from the address when empty"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			msg, err := readMessage(c, c.String("message-file"))
			if err != nil {
				return err
			}
			var hint string
			if name := c.String("chain-type"); name != "" {
				family, err := chain.ParseFamily(name)
				if err != nil {
					return err
				}
				hint = family.String()
			}

			svc := verifier.NewUnified(
				verifier.WithLogger(log.Logger),
				verifier.WithReplayGuard(message.NewReplayGuard(
					message.WithMaxAge(cfg.MaxMessageAge),
					message.WithClockSkew(cfg.ClockSkew),
				)),
				verifier.WithBackend(verifier.NewSubstrateBackend(cfg.SS58Prefix)),
			)
			resp := svc.VerifySignature(c.Context, verifier.Request{
				Message:   msg,
				Signature: c.String("signature"),
				Address:   c.String("address"),
				ChainType: hint,
			})
			if err := printJSON(c.App.Writer, resp); err != nil {
				return err
			}
			if !resp.Success() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func didCommand() *cli.Command {
	return &cli.Command{
		Name:  "did",
		Usage: "derive the did:key document of an address, or resolve a did:key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}},
			&cli.StringFlag{Name: "resolve", Aliases: []string{"r"}, Usage: "did:key identifier to resolve"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			resolver := did.NewDefaultResolver(cfg.SS58Prefix)

			if id := c.String("resolve"); id != "" {
				doc, _, err := resolver.Resolve(id)
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, doc)
			}

			address := c.String("address")
			if address == "" {
				return fmt.Errorf("either --address or --resolve is required")
			}
			family, err := chain.Detect(address)
			if err != nil {
				return err
			}
			provider, ok := resolver.Provider(family)
			if !ok {
				return fmt.Errorf("%w: %s", chain.ErrUnsupportedChainType, family)
			}
			doc, err := provider.CreateDIDDocument(address)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, doc)
		},
	}
}

func newSigner(scheme, key string, prefix uint16) (signer.Signer, error) {
	var (
		s   signer.Signer
		err error
	)
	switch strings.ToLower(scheme) {
	case "sr25519":
		s, err = signer.NewSr25519Signer(key, prefix)
	case "ed25519":
		s, err = signer.NewEd25519Signer(key, prefix)
	case "evm", "ethereum", "secp256k1":
		s, err = signer.NewEVMSigner(key)
	default:
		err = fmt.Errorf("unknown signature scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func readMessage(c *cli.Context, path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(c.App.Reader)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
