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
		sessions, err := app.FindCollectionByNameOrId("cave_sessions")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("cave_orders")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "session",
				Required:     true,
				CollectionId: sessions.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "event",
				Required:     true,
				CollectionId: events.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "user",
				Required:     true,
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.NumberField{Name: "amount", Required: true},
			&core.SelectField{
				Name:      "paid_with",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"points", "cash", "mixed"},
			},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_cave_orders_session", false, "session", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("cave_orders")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
