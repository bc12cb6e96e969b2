package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/pkg/utils"
)

// UsersFile is the YAML document imported into the user directory
type UsersFile struct {
	Users []UserEntry `yaml:"users"`
}

// UserEntry is one user in a UsersFile. Active defaults to true.
type UserEntry struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
	Role        string `yaml:"role"`
	Active      *bool  `yaml:"active"`
}

// LoadUsers reads and validates a users file
func LoadUsers(path string) ([]*entity.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	return ParseUsers(data)
}

// ParseUsers decodes a users document. Unknown keys are rejected so typos
// in a role or flag do not silently import a wrong user.
func ParseUsers(data []byte) ([]*entity.User, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc UsersFile
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	seen := make(map[string]bool, len(doc.Users))
	users := make([]*entity.User, 0, len(doc.Users))
	var errs []error
	for i, e := range doc.Users {
		u, err := e.toUser()
		if err != nil {
			errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
			continue
		}
		if seen[u.ID] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate id %s", i, u.ID))
			continue
		}
		seen[u.ID] = true
		users = append(users, u)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return users, nil
}

func (e UserEntry) toUser() (*entity.User, error) {
	if err := utils.ValidateUserID(e.ID); err != nil {
		return nil, err
	}
	role, err := entity.ParseRole(e.Role)
	if err != nil {
		return nil, err
	}
	if e.Email != "" {
		if err := utils.ValidateEmail(e.Email); err != nil {
			return nil, err
		}
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}

	name := strings.TrimSpace(utils.SanitizeString(e.DisplayName))
	if name == "" {
		name = e.ID
	}

	return &entity.User{
		ID:          e.ID,
		DisplayName: name,
		Email:       e.Email,
		Role:        role,
		Active:      active,
	}, nil
}
