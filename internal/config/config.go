package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultOwnTaxID is the distributor's own company number; it appears on every
// delivery note it issues and must never resolve to a client.
const DefaultOwnTaxID = "515396513"

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	LogLevel  string
	LogFormat string

	OwnTaxID                string
	SplitBlocks             bool
	ContinueOnPageError     bool
	TesseractBin            string
	OCRLang                 string
	PdftoppmBin             string
	OCRDPI                  int
	OCRMaxPages             int
	OCRPreprocess           bool
	OCRTimeoutSec           int
	DetectNoteThreshold     float64
	AutoAcceptSingleMailDoc bool

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "nakasem.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		OwnTaxID:                getEnv("OWN_TAX_ID", DefaultOwnTaxID),
		SplitBlocks:             getEnvBool("EXTRACT_SPLIT_BLOCKS", true),
		ContinueOnPageError:     getEnvBool("EXTRACT_CONTINUE_ON_PAGE_ERROR", false),
		TesseractBin:            getEnv("OCR_TESSERACT_BIN", "tesseract"),
		OCRLang:                 getEnv("OCR_LANG", "heb+eng"),
		PdftoppmBin:             getEnv("OCR_PDFTOPPM_BIN", "pdftoppm"),
		OCRDPI:                  getEnvInt("OCR_DPI", 300),
		OCRMaxPages:             getEnvInt("OCR_MAX_PAGES", 20),
		OCRPreprocess:           getEnvBool("OCR_PREPROCESS", true),
		OCRTimeoutSec:           getEnvInt("OCR_TIMEOUT_SEC", 120),
		DetectNoteThreshold:     getEnvFloat("DETECT_NOTE_THRESHOLD", 0.45),
		AutoAcceptSingleMailDoc: getEnvBool("MAIL_AUTO_ACCEPT_SINGLE", false),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
