package dto

type CheckCodeRequestDTO struct {
	Code string `json:"code" binding:"required"`
}
