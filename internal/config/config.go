// ./fieldcam-backend/internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"fieldcam/backend/internal/models"

	"github.com/joho/godotenv"
)

const (
	BackendDrive = "drive"
	BackendMega  = "mega"
	BackendS3    = "s3"
)

// DefaultScopes are the Google scopes needed for uploads, the log sheet and the uploader email.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/userinfo.email",
}

type Google struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type Mega struct {
	Email    string
	Password string
}

type S3 struct {
	Region       string
	RootUser     string
	RootPassword string
	BaseEndpoint string
	Bucket       string
}

type Stamp struct {
	Position string
	Format   string
	Color    string
	Quality  string
}

type Config struct {
	Port     string
	LogLevel string
	APIKey   string

	MongoURI  string
	DBName    string
	UploadDir string

	Google         Google
	StorageBackend string
	Mega           Mega
	S3             S3

	RootFolderID            string
	SpreadsheetID           string
	SpreadsheetName         string
	UnknownLocationFolderID string
	Properties              []models.Property
	DefaultRadiusMeters     float64
	ReferenceZone           *time.Location

	SignInTimeout         time.Duration
	LocationTimeout       time.Duration
	LocationMaxAge        time.Duration
	StatusDisplayDuration time.Duration
	GalleryLimit          int

	Stamp Stamp
}

// propertyFile is one entry of the PROPERTIES_FILE JSON array.
type propertyFile struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	RadiusMeters *float64 `json:"radiusMeters,omitempty"`
	FolderID     string   `json:"folderId"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:      getenv("PORT", "8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		APIKey:    os.Getenv("API_KEY"),
		MongoURI:  os.Getenv("MONGO_URI"),
		DBName:    getenv("DB_NAME", "fieldcam"),
		UploadDir: getenv("UPLOAD_DIR", "./.uploads"),
		Google: Google{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			Scopes:       getlist("GOOGLE_SCOPES", DefaultScopes),
		},
		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", BackendDrive)),
		Mega: Mega{
			Email:    os.Getenv("MEGA_EMAIL"),
			Password: os.Getenv("MEGA_PASSWORD"),
		},
		S3: S3{
			Region:       getenv("S3_REGION", "us-east-1"),
			RootUser:     os.Getenv("S3_ROOT_USER"),
			RootPassword: os.Getenv("S3_ROOT_PASSWORD"),
			BaseEndpoint: os.Getenv("S3_BASE_ENDPOINT"),
			Bucket:       os.Getenv("S3_BUCKET"),
		},
		RootFolderID:            os.Getenv("GOOGLE_DRIVE_FOLDER_ID"),
		SpreadsheetID:           os.Getenv("SPREADSHEET_ID"),
		SpreadsheetName:         getenv("SPREADSHEET_NAME", "Property Photo Log"),
		UnknownLocationFolderID: os.Getenv("UNKNOWN_LOCATION_FOLDER_ID"),
		Stamp: Stamp{
			Position: getenv("TIMESTAMP_POSITION", "bottom-right"),
			Format:   getenv("TIMESTAMP_FORMAT", "full"),
			Color:    getenv("TIMESTAMP_COLOR", "#FFFFFF"),
			Quality:  getenv("PHOTO_QUALITY", "high"),
		},
	}

	var err error
	if cfg.DefaultRadiusMeters, err = getfloat("DETECTION_RADIUS_METERS", 100); err != nil {
		return nil, err
	}
	if cfg.SignInTimeout, err = getduration("SIGNIN_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LocationTimeout, err = getduration("LOCATION_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LocationMaxAge, err = getduration("LOCATION_MAX_AGE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatusDisplayDuration, err = getduration("STATUS_DISPLAY_DURATION", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.GalleryLimit, err = getint("GALLERY_LIMIT", 50); err != nil {
		return nil, err
	}

	zone := getenv("REFERENCE_TIMEZONE", "America/New_York")
	if cfg.ReferenceZone, err = time.LoadLocation(zone); err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_TIMEZONE %q: %w", zone, err)
	}

	if path := os.Getenv("PROPERTIES_FILE"); path != "" {
		if cfg.Properties, err = LoadProperties(path, cfg.DefaultRadiusMeters); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadProperties reads the ordered property list. Entries without a radius
// get defaultRadius.
func LoadProperties(path string, defaultRadius float64) ([]models.Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read properties file: %w", err)
	}
	var entries []propertyFile
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("could not parse properties file: %w", err)
	}

	properties := make([]models.Property, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("property #%d has no name", i+1)
		}
		radius := defaultRadius
		if e.RadiusMeters != nil {
			radius = *e.RadiusMeters
		}
		if radius <= 0 {
			return nil, fmt.Errorf("property %q has non-positive radius", e.Name)
		}
		properties = append(properties, models.Property{
			Name:                  e.Name,
			Address:               e.Address,
			Coordinate:            models.Coordinate{Lat: e.Lat, Lng: e.Lng},
			DetectionRadiusMeters: radius,
			StorageFolderID:       e.FolderID,
		})
	}
	return properties, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendDrive:
		if c.RootFolderID == "" {
			return fmt.Errorf("GOOGLE_DRIVE_FOLDER_ID must be set for the drive backend")
		}
	case BackendMega:
		if c.Mega.Email == "" || c.Mega.Password == "" {
			return fmt.Errorf("MEGA_EMAIL and MEGA_PASSWORD must be set for the mega backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.DefaultRadiusMeters <= 0 {
		return fmt.Errorf("DETECTION_RADIUS_METERS must be positive")
	}
	if c.GalleryLimit <= 0 {
		return fmt.Errorf("GALLERY_LIMIT must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getlist(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getfloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
