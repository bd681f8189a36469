package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"doctor_id",
			"start_time",
			"end_time",
			"capacity",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"doctor_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"capacity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  200,
			},

			// bumped by transactions to take a document write lock
			"lock_seq": bson.M{
				"bsonType": []string{"int", "long"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
	"$expr": bson.M{
		"$lt": []string{"$start_time", "$end_time"},
	},
}
