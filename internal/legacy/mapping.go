package legacy

import (
	"strings"

	"github.com/hospmaint/os-manager/internal/model"
)

// MapStatus translates the legacy status vocabulary into a domain
// status using keyword heuristics. An explicit "pronto" flag of "S"
// overrides whatever the status text says.
func MapStatus(situacao, pronto string) model.Status {
	if strings.EqualFold(strings.TrimSpace(pronto), "S") {
		return model.StatusCompleted
	}
	v := strings.ToLower(strings.TrimSpace(situacao))
	if v == "" {
		return model.StatusReceived
	}
	switch {
	case containsAny(v, "conclu", "pronto", "entreg"):
		return model.StatusCompleted
	case containsAny(v, "andamento", "execu", "reparo"):
		return model.StatusInProgress
	case containsAny(v, "teste", "testando"):
		return model.StatusTesting
	case containsAny(v, "aguard", "espera"):
		return model.StatusWaitingParts
	}
	return model.StatusReceived
}

// MapPriority translates the legacy priority codes and labels.
func MapPriority(p string) model.Priority {
	v := strings.ToLower(strings.TrimSpace(p))
	if v == "" {
		return model.PriorityMedium
	}
	switch {
	case v == "s" || v == "1" || strings.Contains(v, "urg"):
		return model.PriorityUrgent
	case strings.Contains(v, "alta") || v == "2":
		return model.PriorityHigh
	case strings.Contains(v, "baixa") || v == "4":
		return model.PriorityLow
	}
	return model.PriorityMedium
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// composeEquipment joins device, brand and model into one display
// name, skipping empty parts.
func composeEquipment(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "Equipamento"
	}
	return strings.Join(kept, " — ")
}

// composeAccessories merges the accessory text with the patrimony tag.
func composeAccessories(accessories, patrimony string) string {
	parts := make([]string, 0, 2)
	if accessories = strings.TrimSpace(accessories); accessories != "" {
		parts = append(parts, accessories)
	}
	if patrimony = strings.TrimSpace(patrimony); patrimony != "" {
		parts = append(parts, "Patrimônio: "+patrimony)
	}
	return strings.Join(parts, " | ")
}
