package model

import "time"

type Doctor struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" db:"id" validate:"omitempty,uuid4"`
	Name           string    `json:"name" bson:"name" db:"name" validate:"required,min=2,max=100"`
	Specialization string    `json:"specialization,omitempty" bson:"specialization,omitempty" db:"specialization" validate:"omitempty,max=100"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}
