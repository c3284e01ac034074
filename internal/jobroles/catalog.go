package jobroles

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
)

// DefaultRoles is shown when the backend cannot supply its own list
var DefaultRoles = []string{
	"Full Stack Developer",
	"Frontend Developer",
	"Backend Developer",
	"Product Designer",
	"UI/UX Designer",
	"DevOps Engineer",
}

// Catalog holds the fallback role list
type Catalog struct {
	mu    sync.RWMutex
	roles []string
	path  string
}

// NewCatalog creates a catalog seeded with DefaultRoles
func NewCatalog() *Catalog {
	return &Catalog{roles: slices.Clone(DefaultRoles)}
}

// Roles returns a copy of the current fallback list
func (c *Catalog) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.roles)
}

// Path returns the file the catalog was last loaded from
func (c *Catalog) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// LoadFile replaces the list with the roles in path. An empty or unreadable
// file leaves the current list in place.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read role catalog %s: %w", path, err)
	}
	roles := ParseRoles(data)
	if len(roles) == 0 {
		return fmt.Errorf("role catalog %s has no roles", path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles = roles
	c.path = path
	return nil
}

// ParseRoles reads one role per line. Blank lines, duplicates and lines
// starting with # are skipped.
func ParseRoles(data []byte) []string {
	var roles []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !slices.Contains(roles, line) {
			roles = append(roles, line)
		}
	}
	return roles
}
