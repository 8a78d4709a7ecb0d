package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("cave_events")
		if err != nil {
			return err
		}
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("cave_tickets")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "event",
				Required:     true,
				CollectionId: events.Id,
				MaxSelect:    1,
			},
			&core.TextField{Name: "code", Required: true, Max: 64},
			&core.NumberField{Name: "max_use", OnlyInt: true},
			&core.NumberField{Name: "per_user_limit", OnlyInt: true},
			&core.BoolField{Name: "is_personal"},
			&core.RelationField{
				Name:         "owner_user",
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.DateField{Name: "expiry"},
			&core.BoolField{Name: "is_active"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_cave_tickets_code", true, "code", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("cave_tickets")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
