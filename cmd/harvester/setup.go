package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/aluiziolira/go-harvest/config"
	"github.com/aluiziolira/go-harvest/logging"
	"github.com/aluiziolira/go-harvest/parser"
)

// loadConfig reads dotenv files, the optional YAML file and the environment,
// then applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.StringSlice("env-file")...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	cfg, err := config.Load(c.String("config"), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		level := c.String("log-level")
		if !logging.ValidLevel(level) {
			return nil, fmt.Errorf("%w: unknown log level %q", config.ErrInvalidConfig, level)
		}
		cfg.LogLevel = level
	}
	if c.IsSet("pretty") {
		cfg.LogPretty = c.Bool("pretty")
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) zerolog.Logger {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Pretty = cfg.LogPretty
	return logging.Setup(lc)
}

// buildExtractor returns the extractor selected by cfg.Extractor.
func buildExtractor(cfg config.ExtractorConfig) (parser.Extractor, error) {
	switch cfg.Kind {
	case "", config.ExtractorArtist:
		return parser.NewArtistExtractor(), nil
	case config.ExtractorSelector:
		fields := make([]parser.Field, 0, len(cfg.Fields))
		for _, f := range cfg.Fields {
			fields = append(fields, parser.Field{Name: f.Name, Selector: f.Selector, Attr: f.Attr})
		}
		return &parser.SelectorExtractor{Item: cfg.Item, Fields: fields}, nil
	default:
		return nil, fmt.Errorf("%w: unknown extractor %q", config.ErrInvalidConfig, cfg.Kind)
	}
}
