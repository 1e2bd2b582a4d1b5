package config

import (
	"fmt"
	"time"

	"github.com/glimps-re/autovt/pkg/browser"
	"github.com/glimps-re/autovt/pkg/classifier"
	"github.com/spf13/viper"
)

var Version = "dev"

var (
	DefaultLandingURL  = "https://www.virustotal.com/"
	DefaultOutputDir   = "AutoVT_Reports"
	DefaultFormat      = "md"
	DefaultMaxFileSize = "650MB"
	DefaultWindowSize  = "1280x960"
)

type Config struct {
	// global
	Config           string `yaml:"config" mapstructure:"config" desc:"path to configuration file"`
	Debug            bool   `yaml:"debug" mapstructure:"debug" desc:"print debug logs"`
	Verbose          bool   `yaml:"verbose" mapstructure:"verbose" desc:"print clean files too"`
	Output           string `yaml:"output" mapstructure:"output" desc:"reports directory"`
	Format           string `yaml:"format" mapstructure:"format" desc:"reports format, md or html"`
	PDF              bool   `yaml:"pdf" mapstructure:"pdf" desc:"export html reports to pdf"`
	EmbedScreenshots bool   `yaml:"embedScreenshots" mapstructure:"embedScreenshots" desc:"embed screenshots in reports"`
	FollowSymlinks   bool   `yaml:"followSymlinks" mapstructure:"followSymlinks" desc:"follow symbolic links"`
	MaxFileSize      string `yaml:"maxFileSize" mapstructure:"maxFileSize" desc:"larger files are skipped"`
	History          string `yaml:"history" mapstructure:"history" desc:"scan history database, empty keeps it in memory"`

	Username string `yaml:"username" mapstructure:"username" desc:"service account"`
	Password string `yaml:"-" mapstructure:"password" desc:"service account password"`

	Browser   Browser   `yaml:"browser" mapstructure:"browser"`
	Timeouts  Timeouts  `yaml:"timeouts" mapstructure:"timeouts"`
	Selectors Selectors `yaml:"selectors" mapstructure:"selectors"`
	Texts     Texts     `yaml:"texts" mapstructure:"texts"`
}

type Browser struct {
	LandingURL     string   `yaml:"landingURL" mapstructure:"landingURL"`
	Headless       bool     `yaml:"headless" mapstructure:"headless"`
	UserDataDir    string   `yaml:"userDataDir" mapstructure:"userDataDir"`
	ExecPath       string   `yaml:"execPath" mapstructure:"execPath"`
	WindowSize     string   `yaml:"windowSize" mapstructure:"windowSize"`
	ElementTimeout Duration `yaml:"elementTimeout" mapstructure:"elementTimeout"`
}

type Timeouts struct {
	Report        Duration `yaml:"report" mapstructure:"report"`
	Recovery      Duration `yaml:"recovery" mapstructure:"recovery"`
	Poll          Duration `yaml:"poll" mapstructure:"poll"`
	UploadSettle  Duration `yaml:"uploadSettle" mapstructure:"uploadSettle"`
	Captcha       Duration `yaml:"captcha" mapstructure:"captcha"`
	CaptchaRender Duration `yaml:"captchaRender" mapstructure:"captchaRender"`
	CaptchaRemind Duration `yaml:"captchaRemind" mapstructure:"captchaRemind"`
	MFA           Duration `yaml:"mfa" mapstructure:"mfa"`
	MFAPrompt     Duration `yaml:"mfaPrompt" mapstructure:"mfaPrompt"`
	Summary       Duration `yaml:"summary" mapstructure:"summary"`
}

type Selectors struct {
	UploadInput   browser.Selector `yaml:"uploadInput" mapstructure:"uploadInput"`
	UploadButton  browser.Selector `yaml:"uploadButton" mapstructure:"uploadButton"`
	ReportPanel   browser.Selector `yaml:"reportPanel" mapstructure:"reportPanel"`
	ReportSummary browser.Selector `yaml:"reportSummary" mapstructure:"reportSummary"`
	Captcha       browser.Selector `yaml:"captcha" mapstructure:"captcha"`
	SignIn        browser.Selector `yaml:"signIn" mapstructure:"signIn"`
	Username      browser.Selector `yaml:"username" mapstructure:"username"`
	Password      browser.Selector `yaml:"password" mapstructure:"password"`
	Terms         browser.Selector `yaml:"terms" mapstructure:"terms"`
	SignInSubmit  browser.Selector `yaml:"signInSubmit" mapstructure:"signInSubmit"`
	MFAPrompt     browser.Selector `yaml:"mfaPrompt" mapstructure:"mfaPrompt"`
	MFACode       browser.Selector `yaml:"mfaCode" mapstructure:"mfaCode"`
}

type Texts struct {
	ConfirmUpload  string   `yaml:"confirmUpload" mapstructure:"confirmUpload"`
	Unsubmitted    string   `yaml:"unsubmitted" mapstructure:"unsubmitted"`
	Pending        []string `yaml:"pending" mapstructure:"pending"`
	VerdictPattern string   `yaml:"verdictPattern" mapstructure:"verdictPattern"`
}

func Default() *Config {
	homeView := []string{"#view-container > home-view", "#uploadForm"}
	return &Config{
		Output:      DefaultOutputDir,
		Format:      DefaultFormat,
		MaxFileSize: DefaultMaxFileSize,
		History:     DefaultHistoryPath(),
		Browser: Browser{
			LandingURL:     DefaultLandingURL,
			WindowSize:     DefaultWindowSize,
			ElementTimeout: Duration(30 * time.Second),
		},
		Timeouts: Timeouts{
			Report:        Duration(8 * time.Minute),
			Recovery:      Duration(60 * time.Second),
			Poll:          Duration(time.Second),
			UploadSettle:  Duration(1500 * time.Millisecond),
			Captcha:       Duration(10 * time.Minute),
			CaptchaRender: Duration(500 * time.Millisecond),
			CaptchaRemind: Duration(45 * time.Second),
			MFA:           Duration(5 * time.Minute),
			MFAPrompt:     Duration(1500 * time.Millisecond),
			Summary:       Duration(10 * time.Second),
		},
		Selectors: Selectors{
			UploadInput:   browser.ByCSS("#fileSelector", homeView...),
			UploadButton:  browser.ByCSS("div > form > button", homeView...),
			ReportPanel:   browser.ByCSS("#report", "#view-container > file-view"),
			ReportSummary: browser.ByCSS("div > div.card-header > div.fw-bold", "#view-container > file-view", "#report > vt-ui-file-card"),
			Captcha:       browser.ByXPath("//*[contains(@id, 'captcha')]/*"),
			SignIn:        browser.ByCSS("div > a.signin", "body > vt-ui-shell", "uno-navbar", "div > div.hstack > uno-account-widget"),
			Username:      browser.ByID("userId"),
			Password:      browser.ByID("password"),
			Terms:         browser.ByXPath("//input[contains(@type, 'checkbox')]"),
			SignInSubmit:  browser.ByID("sign-in-btn"),
			MFAPrompt:     browser.ByXPath("//*[contains(text(), 'Authentication code')]"),
			MFACode:       browser.ByID("code2fa"),
		},
		Texts: Texts{
			ConfirmUpload:  "Confirm Upload",
			Unsubmitted:    "Choose file",
			Pending:        []string{"Checking hash", "Choose file"},
			VerdictPattern: classifier.DefaultPattern,
		},
	}
}

// Load reads the yaml file at path into conf, keys missing from the file keep
// their value.
func Load(v *viper.Viper, path string, conf *Config) (err error) {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err = v.ReadInConfig(); err != nil {
		return fmt.Errorf("can't read config: %w", err)
	}
	if err = v.Unmarshal(conf, viper.DecodeHook(DurationHook())); err != nil {
		return fmt.Errorf("can't unmarshal config: %w", err)
	}
	return
}
