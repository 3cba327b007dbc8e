package funding

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type DepositRequest struct {
	UserAddress   string `json:"userAddress" validate:"required,max=128"`
	Chain         string `json:"chain" validate:"required,chain"`
	Amount        string `json:"amount,omitempty" validate:"omitempty,numeric"`
	RewardAddress string `json:"rewardAddress,omitempty" validate:"omitempty,eth_addr"`
}

type CheckStatusRequest struct {
	DepositID string `form:"depositId" validate:"required,uuid"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("chain", func(fl validator.FieldLevel) bool {
		return model.Chain(strings.ToUpper(fl.Field().String())).IsValid()
	})
	return v
}
