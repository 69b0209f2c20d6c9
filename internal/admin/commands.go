// Package admin parses and executes administrator text commands.
package admin

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

// Kind names a supported admin command.
type Kind string

const (
	KindOperatorAdd     Kind = "operator_add"
	KindOperatorRemove  Kind = "operator_remove"
	KindCourierRemove   Kind = "courier_remove"
	KindSubscriptionAdd Kind = "sub_add"
)

var usage = map[Kind]string{
	KindOperatorAdd:     "Использование: operator_add ID",
	KindOperatorRemove:  "Использование: operator_remove ID",
	KindCourierRemove:   "Использование: courier_remove ID",
	KindSubscriptionAdd: "Использование: sub_add USER_ID daily|alternate",
}

// Command is a parsed admin instruction.
type Command struct {
	Kind     Kind                   `validate:"required"`
	TargetID int64                  `validate:"gt=0"`
	SubType  enums.SubscriptionType `validate:"required_if=Kind sub_add"`
}

var validate = validator.New()

// KindOf returns the command keyword of text, if any.
func KindOf(text string) (Kind, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	kind := Kind(strings.ToLower(fields[0]))
	_, ok := usage[kind]
	return kind, ok
}

// IsCommand reports whether text starts with an admin command keyword.
func IsCommand(text string) bool {
	_, ok := KindOf(text)
	return ok
}

// Parse turns text into a Command. Malformed input yields a validation error
// whose message is the usage line.
func Parse(text string) (Command, error) {
	kind, ok := KindOf(text)
	if !ok {
		return Command{}, pkgerrors.New(pkgerrors.CodeValidation, "неизвестная команда")
	}
	fields := strings.Fields(text)[1:]
	malformed := pkgerrors.New(pkgerrors.CodeValidation, usage[kind])

	want := 1
	if kind == KindSubscriptionAdd {
		want = 2
	}
	if len(fields) != want {
		return Command{}, malformed
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Command{}, malformed
	}
	cmd := Command{Kind: kind, TargetID: id}
	if kind == KindSubscriptionAdd {
		subType, err := enums.ParseSubscriptionType(fields[1])
		if err != nil {
			return Command{}, malformed
		}
		cmd.SubType = subType
	}
	if err := validate.Struct(cmd); err != nil {
		return Command{}, malformed
	}
	return cmd, nil
}
