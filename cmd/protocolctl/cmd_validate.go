package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
)

var errInvalidPayload = errors.New("payload is invalid")

type payloadValidator func(raw []byte) (result interface{}, ok bool)

func wrap[T any](fn func([]byte) validation.Result[T]) payloadValidator {
	return func(raw []byte) (interface{}, bool) {
		res := fn(raw)
		return res, res.Success
	}
}

var payloadValidators = map[string]payloadValidator{
	"evaluation":  wrap(validation.ValidateEvaluationData),
	"cementation": wrap(validation.ValidateCementationData),
	"teeth":       wrap(validation.ValidateSubmitTeeth),
	"regenerate":  wrap(validation.ValidateRegenerateBudget),
	"checklist":   wrap(validation.ValidateChecklistProgress),
}

func payloadKinds() []string {
	kinds := make([]string, 0, len(payloadValidators))
	for k := range payloadValidators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <kind> <file>",
		Short: "Validate a request payload without calling the API",
		Long:  "Validate a JSON request payload. Kinds: " + strings.Join(payloadKinds(), ", ") + ". Use - to read stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			validate, ok := payloadValidators[args[0]]
			if !ok {
				return fmt.Errorf("unknown payload kind %q (want one of %s)", args[0], strings.Join(payloadKinds(), ", "))
			}

			var raw []byte
			var err error
			if args[1] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			result, valid := validate(raw)
			if err := outputJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !valid {
				return errInvalidPayload
			}
			return nil
		},
	}
}
