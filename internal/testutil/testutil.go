package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

// envTestSearchDepth is how many parent directories are searched for .env.test
const envTestSearchDepth = 5

// LoadTestEnv points DATABASE_URL at the test database. An existing
// DATABASE_URL (as in CI) wins; otherwise TEST_DATABASE_URL from the nearest
// .env.test is used. It returns the resulting URL, which may be empty.
func LoadTestEnv(t *testing.T) string {
	t.Helper()

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	envPath := findEnvTestFile()
	if envPath == "" {
		t.Log(".env.test not found, using environment as-is")
		return ""
	}

	envMap, err := godotenv.Read(envPath)
	if err != nil {
		t.Logf("Failed to read %s: %v", envPath, err)
		return ""
	}

	testDBURL := envMap["TEST_DATABASE_URL"]
	if testDBURL != "" {
		t.Setenv("DATABASE_URL", testDBURL)
		t.Logf("DATABASE_URL set from TEST_DATABASE_URL in %s", envPath)
	}
	return testDBURL
}

// RequireDatabase skips the test unless a test database is configured
func RequireDatabase(t *testing.T) {
	t.Helper()
	if LoadTestEnv(t) == "" {
		t.Skip("no test database configured (set DATABASE_URL or TEST_DATABASE_URL in .env.test)")
	}
}

// findEnvTestFile walks up from the working directory looking for .env.test
func findEnvTestFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for range envTestSearchDepth {
		envPath := filepath.Join(dir, ".env.test")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
