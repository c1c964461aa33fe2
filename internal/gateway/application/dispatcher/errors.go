package dispatcher

import "fmt"

func errUnknownEnvelopeType(t EnvelopeType) error {
	return fmt.Errorf("admin envelope: unknown type %q", t)
}
