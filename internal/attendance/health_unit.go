package attendance

import (
	"errors"
	"strings"
)

// HealthUnit is the payload of the health-unit registration endpoint.
type HealthUnit struct {
	Name     string `json:"nome_unidade_saude"`
	Location string `json:"nome_localizacao"`
	Code     string `json:"codigo_unidade_saude"`
	City     string `json:"cidade_unidade_saude"`
	Active   bool   `json:"fl_ativo"`
}

var (
	ErrUnitNameRequired     = errors.New("Nome da unidade é obrigatório.")
	ErrUnitLocationRequired = errors.New("Endereço é obrigatório.")
	ErrUnitCodeRequired     = errors.New("Código da unidade é obrigatório.")
	ErrUnitCityRequired     = errors.New("Cidade é obrigatória.")
)

// Validate reports the first missing required field.
func (u HealthUnit) Validate() error {
	switch {
	case strings.TrimSpace(u.Name) == "":
		return ErrUnitNameRequired
	case strings.TrimSpace(u.Location) == "":
		return ErrUnitLocationRequired
	case strings.TrimSpace(u.Code) == "":
		return ErrUnitCodeRequired
	case strings.TrimSpace(u.City) == "":
		return ErrUnitCityRequired
	}
	return nil
}
