package detailtree

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
)

const dateLayout = "2006-01-02"

// writeValue parses text for the kind of f and stores it.
func writeValue(uow ports.UnitOfWork, id domain.EntityID, f domain.FieldDef, ws, text string) error {
	switch f.Kind {
	case domain.KindString:
		return uow.SetString(id, f.Name, text)
	case domain.KindMultiString:
		if ws == "" {
			return fmt.Errorf("multistring field %s needs a writing system", f.Name)
		}
		return uow.SetMultiString(id, f.Name, ws, text)
	case domain.KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", text, err)
		}
		return uow.SetValue(id, f.Name, n)
	case domain.KindBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", text, err)
		}
		return uow.SetValue(id, f.Name, b)
	case domain.KindDate:
		d, err := time.Parse(dateLayout, strings.TrimSpace(text))
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", text, err)
		}
		return uow.SetValue(id, f.Name, d)
	case domain.KindReferenceAtomic:
		target, err := domain.ToEntityID(strings.TrimSpace(text))
		if err != nil {
			return err
		}
		return uow.SetAtomic(id, f.Name, target)
	default:
		return fmt.Errorf("%s fields are not edited as text", f.Kind)
	}
}
