package models

import (
	"context"

	"github.com/mmdatafocus/mdm_backend/utils"
)

// Actor identifies who performed a ledger transition.
type Actor struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

func ActorFromContext(ctx context.Context) Actor {
	id, _ := utils.GetUserIdFromContext(ctx)
	name, _ := utils.GetUserNameFromContext(ctx)
	if name == "" {
		name = "System"
	}
	return Actor{Id: id, Name: name}
}
