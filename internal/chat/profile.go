package chat

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/ratelimit"
	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

var (
	ErrNoProfile      = errors.New("profile is not set")
	ErrProfileAddress = errors.New("profile address does not match the wallet")
)

// Profile is the wallet owner's display profile
type Profile struct {
	Address    string `json:"address"`
	Name       string `json:"name"`
	Bio        string `json:"bio,omitempty"`
	Email      string `json:"email,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	AvatarType string `json:"avatarType,omitempty"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// UpdateProfile validates and stores the profile of the wallet owner. An
// empty address defaults to the wallet; avatar may be nil.
func (s *Service) UpdateProfile(in validation.ProfileInput, avatar []byte) (Profile, error) {
	sender, err := s.sender()
	if err != nil {
		return Profile{}, err
	}
	if in.Address == "" {
		in.Address = sender.Hex()
	}
	if !strings.EqualFold(in.Address, sender.Hex()) {
		return Profile{}, ErrProfileAddress
	}
	if err := s.validator.Struct(in); err != nil {
		return Profile{}, err
	}

	p := Profile{
		Address:   sender.Hex(),
		Name:      in.Name,
		Bio:       s.sanitizer.StripAll(in.Bio),
		Email:     in.Email,
		AvatarURL: in.AvatarURL,
		UpdatedAt: s.now().UnixMilli(),
	}
	if len(avatar) > 0 {
		mtype, err := validation.Avatar(avatar)
		if err != nil {
			return Profile{}, err
		}
		p.AvatarType = mtype
	}

	if err := s.limiter.Check(ratelimit.ActionProfile, sender.Hex()); err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()

	s.logger.Info("Profile updated", zap.String("address", p.Address), zap.String("name", p.Name))
	return p, nil
}

// Profile returns the stored profile
func (s *Service) Profile() (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, ErrNoProfile
	}
	return *s.profile, nil
}
