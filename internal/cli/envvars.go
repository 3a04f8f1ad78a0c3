package cli

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ParseFlagsWithEnvVars parses the command line flags.
// Each flag can also be specified as environment variable using the given prefix, e.g. -server-url as PREFIX_SERVER_URL.
// Environment variables are read from the file specified via the PREFIX_ENV_FILE variable or .env (if exists) first.
func ParseFlagsWithEnvVars(flags *flag.FlagSet, envVarPrefix string) {
	err := parseFlagsWithEnvVars(flags, envVarPrefix, os.Args[1:])
	if err != nil {
		flags.Usage()
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func parseFlagsWithEnvVars(flags *flag.FlagSet, envVarPrefix string, args []string) error {
	addLogLevelFlag(flags)

	err := loadEnvFile(envVarPrefix)
	if err != nil {
		return err
	}

	supportedEnvVars := map[string]struct{}{
		envVarPrefix + "ENV_FILE": {},
	}

	var envErr error

	flags.VisitAll(func(f *flag.Flag) {
		envVarName := envVarPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		f.Usage = fmt.Sprintf("%s (%s)", f.Usage, envVarName)
		supportedEnvVars[envVarName] = struct{}{}

		if envVarValue := os.Getenv(envVarName); envVarValue != "" && envErr == nil {
			err := f.Value.Set(envVarValue)
			if err != nil {
				envErr = fmt.Errorf("invalid environment variable %s value provided: %w", envVarName, err)
				return
			}

			if !strings.Contains(strings.ToLower(f.Name), "key") {
				f.DefValue = envVarValue
			}
		}
	})

	if envErr != nil {
		return envErr
	}

	err = flags.Parse(args)
	if err != nil {
		return err
	}

	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, envVarPrefix) {
			kv := strings.SplitN(entry, "=", 2)
			if _, ok := supportedEnvVars[kv[0]]; !ok {
				return fmt.Errorf("unsupported environment variable provided: %s", kv[0])
			}
		}
	}

	return nil
}

func loadEnvFile(envVarPrefix string) error {
	file := os.Getenv(envVarPrefix + "ENV_FILE")
	if file == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env file: %w", err)
		}

		return nil
	}

	err := godotenv.Load(file)
	if err != nil {
		return fmt.Errorf("load env file %s: %w", file, err)
	}

	return nil
}
