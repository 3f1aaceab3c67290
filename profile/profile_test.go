package profile

import (
	"reflect"
	"testing"
)

func TestFieldConstantsMatchStructTags(t *testing.T) {
	tests := []struct {
		constant    string
		structField string
	}{
		{NicknameField, "Nickname"},
		{FollowingIDsField, "FollowingIDs"},
		{FollowersCountField, "FollowersCount"},
		{FollowingCountField, "FollowingCount"},
		{tokensField, "Tokens"},
	}

	userType := reflect.TypeOf(User{})
	for _, test := range tests {
		field, ok := userType.FieldByName(test.structField)
		if !ok {
			t.Fatalf("User has no field %q", test.structField)
		}
		if tag := field.Tag.Get("firestore"); tag != test.constant {
			t.Errorf("User.%s has firestore tag %q; constant says %q", test.structField, tag, test.constant)
		}
	}
}

func TestActiveTokens(t *testing.T) {
	tests := []struct {
		name     string
		user     *User
		expected []string
	}{
		{
			name:     "all tokens active",
			user:     &User{Tokens: map[string]bool{"tok2": true, "tok1": true}},
			expected: []string{"tok1", "tok2"},
		},
		{
			name:     "inactive tokens skipped",
			user:     &User{Tokens: map[string]bool{"tok1": true, "tok2": false}},
			expected: []string{"tok1"},
		},
		{
			name:     "no tokens",
			user:     &User{},
			expected: nil,
		},
		{
			name:     "only inactive tokens",
			user:     &User{Tokens: map[string]bool{"tok1": false}},
			expected: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tokens := ActiveTokens(test.user)
			if !reflect.DeepEqual(tokens, test.expected) {
				t.Errorf("ActiveTokens(%v) = %v; want %v", test.user.Tokens, tokens, test.expected)
			}
		})
	}
}
