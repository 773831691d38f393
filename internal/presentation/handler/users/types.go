package users

type upsertUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
	Status   string `json:"status" validate:"omitempty,max=128"`
}
