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

		collection := core.NewBaseCollection("cave_sessions")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "user",
				Required:     true,
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "event",
				Required:     true,
				CollectionId: events.Id,
				MaxSelect:    1,
			},
			&core.DateField{Name: "entered_at", Required: true},
			&core.DateField{Name: "expires_at", Required: true},
			&core.DateField{Name: "left_at"},
			&core.NumberField{Name: "total_spent"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// "At most one open session per user" lives here, not in the
		// application: open rows are the ones never closed (left_at still
		// empty), and the partial unique index makes the second concurrent
		// insert fail so the app can re-fetch the winner.
		collection.AddIndex("idx_cave_sessions_open_user", true, "user", "left_at = ''")
		collection.AddIndex("idx_cave_sessions_user_event", false, "user, event", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("cave_sessions")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
