package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	dataDir       string
	playerGrace   time.Duration
	sweepInterval time.Duration
	port          int
	prefix        string
	profile       bool
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZNIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quiznight",
		Short:         "A live multi-room party trivia game: host screen, public display and mobile controllers.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZNIGHT_BIND)")
	fs.StringVar(&cfg.dataDir, "data-dir", ".", "directory holding config, question and stats files (env: QUIZNIGHT_DATA_DIR)")
	fs.DurationVar(&cfg.playerGrace, "player-grace", 300*time.Second, "time a disconnected player keeps their seat mid-game (env: QUIZNIGHT_PLAYER_GRACE)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 60*time.Second, "how often disconnected players are swept (env: QUIZNIGHT_SWEEP_INTERVAL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZNIGHT_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIZNIGHT_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZNIGHT_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIZNIGHT_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIZNIGHT_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZNIGHT_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZNIGHT_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quiznight v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// Settings is the game configuration file, editable from the admin panel.
type Settings struct {
	GameTitle     string            `json:"game_title"`
	AdminPassword string            `json:"admin_password"`
	ModeNames     map[string]string `json:"mode_names"`
	ModesEnabled  map[string]bool   `json:"modes_enabled"`
	EasterEggs    map[string]bool   `json:"easter_eggs"`
	ActiveThemes  ActiveThemes      `json:"active_themes"`
	Rules         GameRules         `json:"rules"`
	Points        PointsConfig      `json:"points"`
}

// ActiveThemes are per-mode theme allow-lists; empty means no restriction.
type ActiveThemes struct {
	Simple []string `json:"simple"`
	Intrus []string `json:"intrus"`
}

type GameRules struct {
	QuestionsPerPlayerSimple int `json:"questions_per_player_simple"`
	QuestionsTotalBuzzer     int `json:"questions_total_buzzer"`
	QuestionsPerPlayerIntrus int `json:"questions_per_player_intrus"`
	QuestionsTotalEstimation int `json:"questions_total_estimation"`
}

type PointsConfig struct {
	Simple            int `json:"simple"`
	Buzzer            int `json:"buzzer"`
	Intrus            int `json:"intrus"`
	EstimationPerfect int `json:"estimation_perfect"`
	EstimationClose   int `json:"estimation_close"`
}

func defaultSettings() *Settings {
	return &Settings{
		GameTitle:     "Quiz Night Arena",
		AdminPassword: "admin",
		ModeNames: map[string]string{
			"simple":     "The Brain Teaser",
			"buzzer":     "Buzzer Massacre",
			"intrus":     "Stop or Blunder",
			"estimation": "The Thermometer",
		},
		ModesEnabled: map[string]bool{
			"simple":     true,
			"buzzer":     true,
			"intrus":     true,
			"estimation": true,
		},
		EasterEggs: map[string]bool{
			"tyson":   true,
			"lorie":   true,
			"corine":  true,
			"oceane":  true,
			"dimitri": true,
			"jc":      true,
			"marie":   true,
		},
		Rules: GameRules{
			QuestionsPerPlayerSimple: 2,
			QuestionsTotalBuzzer:     5,
			QuestionsPerPlayerIntrus: 1,
			QuestionsTotalEstimation: 5,
		},
		Points: PointsConfig{
			Simple:            10,
			Buzzer:            10,
			Intrus:            50,
			EstimationPerfect: 150,
			EstimationClose:   100,
		},
	}
}

const settingsFile = "config.json"

// loadSettings reads the settings file through viper, filling absent keys from
// the defaults. A missing or unreadable file yields the full defaults, which
// are written back immediately.
func loadSettings(cfg *Config) *Settings {
	path := filepath.Join(cfg.dataDir, settingsFile)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	settings := defaultSettings()

	if err := v.ReadInConfig(); err != nil {
		logf(cfg, "DATA: Settings file %s unreadable (%v), writing defaults", path, err)
		saveSettings(cfg, settings)
		return settings
	}

	err := v.Unmarshal(settings, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	})
	if err != nil {
		logf(cfg, "DATA: Settings file %s malformed (%v), writing defaults", path, err)
		settings = defaultSettings()
		saveSettings(cfg, settings)
		return settings
	}

	logf(cfg, "DATA: Settings loaded from %s", path)

	return settings
}

func saveSettings(cfg *Config, settings *Settings) {
	path := filepath.Join(cfg.dataDir, settingsFile)

	data, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		logf(cfg, "DATA: Failed to encode settings: %v", err)
		return
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		logf(cfg, "DATA: Failed to write %s: %v", path, err)
	}
}
