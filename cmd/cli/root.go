package cli

import (
	"log/slog"
	"os"

	"github.com/glimps-re/autovt/pkg/config"
	"github.com/glimps-re/autovt/pkg/handler"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var conf = config.Default()

// initConfig loads the config file into conf. Flags set on the command line
// keep precedence over the file.
func initConfig(cmd *cobra.Command) (err error) {
	if conf.Config == "" {
		if conf.Config, err = config.GetConfigFile(); err != nil {
			logger.Warn("could not locate config file", slog.String("error", err.Error()))
			err = nil
		}
	}
	if conf.Config == "" {
		logger.Debug("no config file, use defaults")
		return
	}
	changed := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})
	if err = config.Load(viper.New(), conf.Config, conf); err != nil {
		logger.Error("could not load config", slog.String("location", conf.Config), slog.String("error", err.Error()))
		return
	}
	for name, value := range changed {
		if err = cmd.Flags().Set(name, value); err != nil {
			return
		}
	}
	return
}

func initRoot(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&conf.Config, "config", "", "config file (default ~/.config/autovt/config.yml, then "+config.DefaultConfigPath+")")
	flags.BoolVarP(&conf.Debug, "debug", "d", conf.Debug, "print debug logs")
	flags.BoolVarP(&conf.Verbose, "verbose", "v", conf.Verbose, "report clean files on the console too (not just detections)")
	flags.StringVar(&conf.Output, "output", conf.Output, "directory receiving the reports and screenshots (never scanned)")
	flags.StringVar(&conf.Format, "format", conf.Format, "reports format: md or html")
	flags.BoolVar(&conf.PDF, "pdf", conf.PDF, "export html reports to pdf once the scan is done")
	flags.BoolVar(&conf.EmbedScreenshots, "embed-screenshots", conf.EmbedScreenshots, "embed screenshots in the reports instead of linking them")
	flags.BoolVar(&conf.FollowSymlinks, "follow-symlinks", conf.FollowSymlinks, "follow symbolic links when scanning directories (if disabled, symlinks are skipped)")
	flags.StringVar(&conf.MaxFileSize, "max-file-size", conf.MaxFileSize, "larger files are skipped (e.g., '650MB')")
	flags.StringVar(&conf.History, "history", conf.History, "scan history database (leave empty for in-memory history, lost on exit)")
	flags.StringVar(&conf.Username, "username", os.Getenv("AUTOVT_USERNAME"), "service account, the password is prompted when not set")
	flags.StringVar(&conf.Password, "password", os.Getenv("AUTOVT_PASSWORD"), "service account password")

	flags.StringVar(&conf.Browser.LandingURL, "landing-url", conf.Browser.LandingURL, "upload page of the service")
	flags.BoolVar(&conf.Browser.Headless, "headless", conf.Browser.Headless, "run the browser without window (captcha and authentication code can not be solved)")
	flags.StringVar(&conf.Browser.UserDataDir, "user-data-dir", conf.Browser.UserDataDir, "browser profile directory, keeps the session between runs")
	flags.StringVar(&conf.Browser.WindowSize, "window-size", conf.Browser.WindowSize, "browser window size, WIDTHxHEIGHT")

	flags.Var(&conf.Timeouts.Report, "report-timeout", "time allowed to the service to show a report")
	flags.Var(&conf.Timeouts.Recovery, "recovery-timeout", "time waited before reloading a stuck upload page")
	flags.Var(&conf.Timeouts.Captcha, "captcha-timeout", "time allowed to solve a captcha")
	flags.Var(&conf.Timeouts.MFA, "mfa-timeout", "time allowed to type the authentication code")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) (err error) {
		if err = initConfig(cmd); err != nil {
			return
		}
		handler.SetLogLevel(conf.Debug)
		if conf.Debug {
			LogLevel.Set(slog.LevelDebug)
			logger.Debug("debug activated")
		}
		return
	}
}

var rootCmd = &cobra.Command{
	Use:   "autovt",
	Short: "autovt scans a directory through the VirusTotal web interface and writes detection reports",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		err = yaml.NewEncoder(cmd.OutOrStdout()).Encode(conf)
		if err != nil {
			logger.Error("error encode yaml conf", slog.String("err", err.Error()))
			return
		}
		if err = cmd.Usage(); err != nil {
			return
		}
		return
	},
}
