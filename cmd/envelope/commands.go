package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-envelope/pkg/config"
	"github.com/dd0wney/cluso-envelope/pkg/encryption"
	"github.com/dd0wney/cluso-envelope/pkg/logging"
	"github.com/dd0wney/cluso-envelope/pkg/metrics"
)

// stdio marks a flag value meaning standard input or output
const stdio = "-"

type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// commonFlags are accepted by every key-using command
type commonFlags struct {
	configPath string
	keyFile    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML config file")
	fs.StringVar(&c.keyFile, "key-file", "", "Master key file")
}

// load resolves the configuration. A --key-file flag wins over the file
// and the environment.
func (c *commonFlags) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.keyFile != "" {
		cfg.KeyFile = c.keyFile
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	return logging.NewJSONLogger(w, logging.ParseLevel(cfg.LogLevel))
}

func runKeygen(args []string, env *environment) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(env.stderr)

	var common commonFlags
	common.register(fs)
	keyID := fs.String("key-id", "", "Master key id (default: random UUID)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, env.stderr)

	id := *keyID
	if id == "" {
		id = uuid.NewString()
	}

	masterKey, err := encryption.GenerateKey(encryption.MasterKeySize)
	if err != nil {
		return err
	}
	defer clear(masterKey)

	if err := encryption.WriteMasterKeyFile(cfg.KeyFile, id, masterKey); err != nil {
		return err
	}

	logger.Info("master key generated", logging.KeyID(id), logging.Path(cfg.KeyFile))
	fmt.Fprintln(env.stdout, id)
	return nil
}

// cipherCommand holds the state shared by encrypt and decrypt
type cipherCommand struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *metrics.Registry
	provider *encryption.SimpleKeyProvider
	cipher   *encryption.EnvelopeCipher
	start    time.Time
}

func newCipherCommand(common *commonFlags, env *environment) (*cipherCommand, error) {
	cfg, err := common.load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, env.stderr)

	provider, err := encryption.LoadSimpleKeyProvider(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()

	cipher, err := encryption.NewEnvelopeCipher(provider,
		encryption.WithLogger(logger),
		encryption.WithMetrics(registry),
	)
	if err != nil {
		provider.Close()
		return nil, err
	}

	return &cipherCommand{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		provider: provider,
		cipher:   cipher,
		start:    time.Now(),
	}, nil
}

// close wipes the master key and flushes metrics when a textfile is configured
func (c *cipherCommand) close() {
	c.provider.Close()

	if c.cfg.MetricsTextfile == "" {
		return
	}
	c.registry.UpdateSystemMetrics(c.start)
	if err := c.registry.WriteTextfile(c.cfg.MetricsTextfile); err != nil {
		c.logger.Warn("failed to write metrics", logging.Path(c.cfg.MetricsTextfile), logging.Error(err))
	}
}

func runEncrypt(ctx context.Context, args []string, env *environment) error {
	fs := flag.NewFlagSet("encrypt", flag.ContinueOnError)
	fs.SetOutput(env.stderr)

	var common commonFlags
	common.register(fs)
	in := fs.String("in", stdio, "Plaintext input file (- for stdin)")
	out := fs.String("out", stdio, "Sealed record output file (- for stdout)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd, err := newCipherCommand(&common, env)
	if err != nil {
		return err
	}
	defer cmd.close()

	message, err := readInput(*in, env.stdin)
	if err != nil {
		return err
	}

	data, err := cmd.cipher.Seal(ctx, message)
	if err != nil {
		return err
	}

	if err := writeOutput(*out, data, env.stdout); err != nil {
		return err
	}

	cmd.logger.Info("file encrypted",
		logging.KeyID(cmd.provider.KeyID()),
		logging.Path(*out),
		logging.Size(len(message)),
	)
	return nil
}

func runDecrypt(ctx context.Context, args []string, env *environment) error {
	fs := flag.NewFlagSet("decrypt", flag.ContinueOnError)
	fs.SetOutput(env.stderr)

	var common commonFlags
	common.register(fs)
	in := fs.String("in", stdio, "Sealed record input file (- for stdin)")
	out := fs.String("out", stdio, "Plaintext output file (- for stdout)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd, err := newCipherCommand(&common, env)
	if err != nil {
		return err
	}
	defer cmd.close()

	data, err := readInput(*in, env.stdin)
	if err != nil {
		return err
	}

	plaintext, err := cmd.cipher.Open(ctx, data)
	if err != nil {
		return err
	}

	if err := writeOutput(*out, plaintext, env.stdout); err != nil {
		return err
	}

	cmd.logger.Info("file decrypted",
		logging.KeyID(cmd.provider.KeyID()),
		logging.Path(*out),
		logging.Size(len(plaintext)),
	)
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdio {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == stdio {
		_, err := stdout.Write(data)
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
