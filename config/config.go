package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Environment represents the application environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Provider defines the interface for configuration management
type Provider interface {
	// GetString retrieves a string configuration value
	GetString(ctx context.Context, key string) (string, error)
	// GetInt retrieves an integer configuration value
	GetInt(ctx context.Context, key string) (int, error)
	// GetBool retrieves a boolean configuration value
	GetBool(ctx context.Context, key string) (bool, error)
	// GetSecret retrieves a secret value
	GetSecret(ctx context.Context, key string) (string, error)
	// GetEnvironment returns the current environment
	GetEnvironment() Environment
}

// EnvProvider implements Provider using environment variables
type EnvProvider struct {
	prefix      string
	environment Environment
}

// NewEnvProvider creates a new environment-based configuration provider
func NewEnvProvider(prefix string) Provider {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = string(Development)
	}
	return &EnvProvider{
		prefix:      prefix,
		environment: Environment(env),
	}
}

// GetEnvironment returns the current environment
func (p *EnvProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from environment variables
func (p *EnvProvider) GetString(ctx context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + key)
	if value == "" {
		return "", fmt.Errorf("environment variable %s%s not set", p.prefix, key)
	}
	return value, nil
}

// GetInt retrieves an integer configuration value from environment variables
func (p *EnvProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from environment variables
func (p *EnvProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from environment variables
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

// SecretsManagerAPI is the part of the Secrets Manager client the provider uses
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// secretRefreshInterval bounds how long a fetched secret is served from memory
const secretRefreshInterval = 5 * time.Minute

// AWSSecretsProvider implements Provider using AWS Secrets Manager
type AWSSecretsProvider struct {
	mu          sync.Mutex
	client      SecretsManagerAPI
	secretName  string
	cache       map[string]string
	lastFetch   time.Time
	environment Environment
}

// NewAWSSecretsProvider creates a new AWS Secrets Manager based configuration provider
func NewAWSSecretsProvider(secretName string) (Provider, error) {
	// Load AWS configuration
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSSecretsProviderWithClient(secretsmanager.NewFromConfig(cfg), secretName), nil
}

// NewAWSSecretsProviderWithClient creates a secrets provider around a custom client
func NewAWSSecretsProviderWithClient(client SecretsManagerAPI, secretName string) *AWSSecretsProvider {
	// Get environment from environment variable
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = string(Development)
	}

	return &AWSSecretsProvider{
		client:      client,
		secretName:  secretName,
		cache:       make(map[string]string),
		environment: Environment(env),
	}
}

// GetEnvironment returns the current environment
func (p *AWSSecretsProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetString(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Check cache first
	if time.Since(p.lastFetch) > secretRefreshInterval {
		if err := p.refresh(ctx); err != nil {
			return "", err
		}
	}

	// Return requested value
	value, ok := p.cache[key]
	if !ok {
		return "", fmt.Errorf("secret key %s not found", key)
	}
	return value, nil
}

// refresh fetches and validates the secret, replacing the cached copy
func (p *AWSSecretsProvider) refresh(ctx context.Context) error {
	// Fetch secret from AWS Secrets Manager
	secret, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretName),
	})
	if err != nil {
		return fmt.Errorf("failed to get secret: %w", err)
	}
	if secret.SecretString == nil {
		return fmt.Errorf("secret %s has no string value", p.secretName)
	}

	// Parse secret string as JSON
	var secretMap map[string]string
	if err := json.Unmarshal([]byte(*secret.SecretString), &secretMap); err != nil {
		return fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	// Validate secret schema
	if err := validateSecretSchema(secretMap, p.environment); err != nil {
		return fmt.Errorf("invalid secret schema: %w", err)
	}

	// Update cache
	p.cache = secretMap
	p.lastFetch = time.Now()
	return nil
}

// GetInt retrieves an integer configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string
	Path     string // SQLite database file
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Validate checks if the database configuration is valid
func (c *DatabaseConfig) Validate(env Environment) error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return &ValidationError{Field: "Path", Message: "path cannot be empty for sqlite3"}
		}
		if env == Production {
			return &ValidationError{Field: "Driver", Message: "sqlite3 is not allowed in production"}
		}
		return nil
	case DriverPostgres:
	default:
		return &ValidationError{Field: "Driver", Message: fmt.Sprintf("unsupported driver %q", c.Driver)}
	}

	if c.Host == "" {
		return &ValidationError{Field: "Host", Message: "host cannot be empty"}
	}

	// Validate host is a valid hostname or IP
	if host := net.ParseIP(c.Host); host == nil {
		if _, err := net.LookupHost(c.Host); err != nil {
			return &ValidationError{Field: "Host", Message: "invalid hostname or IP address"}
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return &ValidationError{Field: "Port", Message: "port must be between 1 and 65535"}
	}

	if c.User == "" {
		return &ValidationError{Field: "User", Message: "user cannot be empty"}
	}

	if c.Password == "" {
		return &ValidationError{Field: "Password", Message: "password cannot be empty"}
	}

	// Stricter password validation for production
	if env == Production {
		if err := validatePasswordComplexity("Password", c.Password); err != nil {
			return err
		}
	}

	if c.DBName == "" {
		return &ValidationError{Field: "DBName", Message: "database name cannot be empty"}
	}

	// Validate database name format
	if !identifierPattern.MatchString(c.DBName) {
		return &ValidationError{Field: "DBName", Message: "database name must start with a letter and contain only letters, numbers, and underscores"}
	}

	// Validate SSL mode
	if !validSSLModes[c.SSLMode] {
		return &ValidationError{Field: "SSLMode", Message: "invalid SSL mode"}
	}

	// Require SSL in production
	if env == Production && c.SSLMode == "disable" {
		return &ValidationError{Field: "SSLMode", Message: "SSL cannot be disabled in production"}
	}

	return nil
}

// DSN returns the connection string for the configured driver
func (c *DatabaseConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// TreeConfig names the node table a service manages
type TreeConfig struct {
	Table   string
	IDField string
}

// Validate checks that both identifiers are safe to interpolate into SQL
func (c *TreeConfig) Validate() error {
	if !identifierPattern.MatchString(c.Table) {
		return &ValidationError{Field: "Table", Message: "table must start with a letter and contain only letters, numbers, and underscores"}
	}
	if !identifierPattern.MatchString(c.IDField) {
		return &ValidationError{Field: "IDField", Message: "id field must start with a letter and contain only letters, numbers, and underscores"}
	}
	return nil
}

// GetTreeConfig retrieves the managed table, defaulting to folders.node_id
func GetTreeConfig(ctx context.Context, provider Provider) (*TreeConfig, error) {
	table, err := provider.GetString(ctx, "TREE_TABLE")
	if err != nil {
		table = "folders"
	}
	idField, err := provider.GetString(ctx, "TREE_ID_FIELD")
	if err != nil {
		idField = "node_id"
	}

	cfg := &TreeConfig{Table: table, IDField: idField}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tree configuration: %w", err)
	}
	return cfg, nil
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// validatePasswordComplexity applies the production password rules
func validatePasswordComplexity(field, password string) error {
	if len(password) < 12 {
		return &ValidationError{Field: field, Message: "password must be at least 12 characters long in production"}
	}
	if !regexp.MustCompile(`[A-Z]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one uppercase letter in production"}
	}
	if !regexp.MustCompile(`[a-z]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one lowercase letter in production"}
	}
	if !regexp.MustCompile(`[0-9]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one number in production"}
	}
	if !regexp.MustCompile(`[^A-Za-z0-9]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one special character in production"}
	}
	return nil
}

// validateSecretSchema validates the structure of secrets stored in AWS Secrets Manager
func validateSecretSchema(secrets map[string]string, env Environment) error {
	// SQLite deployments keep nothing secret beyond the file path
	if secrets["DB_DRIVER"] == DriverSQLite {
		if _, ok := secrets["DB_PATH"]; !ok {
			return &ValidationError{Field: "DB_PATH", Message: "required secret key not found"}
		}
		return nil
	}

	// Check for required keys
	requiredKeys := []string{
		"DB_HOST",
		"DB_PORT",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
		"DB_SSLMODE",
	}

	for _, key := range requiredKeys {
		if _, ok := secrets[key]; !ok {
			return &ValidationError{
				Field:   key,
				Message: "required secret key not found",
			}
		}
	}

	// Validate port is a number
	if _, err := strconv.Atoi(secrets["DB_PORT"]); err != nil {
		return &ValidationError{
			Field:   "DB_PORT",
			Message: "port must be a valid number",
		}
	}

	// Validate SSL mode
	if !validSSLModes[secrets["DB_SSLMODE"]] {
		return &ValidationError{
			Field:   "DB_SSLMODE",
			Message: "invalid SSL mode",
		}
	}

	// Stricter validation for production
	if env == Production {
		// Validate host is not localhost in production
		if strings.ToLower(secrets["DB_HOST"]) == "localhost" {
			return &ValidationError{
				Field:   "DB_HOST",
				Message: "localhost is not allowed in production",
			}
		}

		// Validate SSL is enabled in production
		if secrets["DB_SSLMODE"] == "disable" {
			return &ValidationError{
				Field:   "DB_SSLMODE",
				Message: "SSL cannot be disabled in production",
			}
		}

		// Validate password complexity in production
		if err := validatePasswordComplexity("DB_PASSWORD", secrets["DB_PASSWORD"]); err != nil {
			return err
		}
	}

	return nil
}

// GetDatabaseConfig retrieves database configuration using the provided config provider
func GetDatabaseConfig(ctx context.Context, provider Provider) (*DatabaseConfig, error) {
	driver, err := provider.GetString(ctx, "DB_DRIVER")
	if err != nil {
		driver = DriverPostgres
	}

	cfg := &DatabaseConfig{Driver: driver}

	if driver == DriverSQLite {
		path, err := provider.GetString(ctx, "DB_PATH")
		if err != nil {
			return nil, fmt.Errorf("failed to get DB_PATH: %w", err)
		}
		cfg.Path = path
	} else {
		if cfg.Host, err = provider.GetString(ctx, "DB_HOST"); err != nil {
			return nil, fmt.Errorf("failed to get DB_HOST: %w", err)
		}
		if cfg.Port, err = provider.GetInt(ctx, "DB_PORT"); err != nil {
			return nil, fmt.Errorf("failed to get DB_PORT: %w", err)
		}
		if cfg.User, err = provider.GetString(ctx, "DB_USER"); err != nil {
			return nil, fmt.Errorf("failed to get DB_USER: %w", err)
		}
		if cfg.Password, err = provider.GetSecret(ctx, "DB_PASSWORD"); err != nil {
			return nil, fmt.Errorf("failed to get DB_PASSWORD: %w", err)
		}
		if cfg.DBName, err = provider.GetString(ctx, "DB_NAME"); err != nil {
			return nil, fmt.Errorf("failed to get DB_NAME: %w", err)
		}
		if cfg.SSLMode, err = provider.GetString(ctx, "DB_SSLMODE"); err != nil {
			cfg.SSLMode = "disable" // Default to disable if not set
		}
	}

	// Validate configuration
	if err := cfg.Validate(provider.GetEnvironment()); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	return cfg, nil
}
