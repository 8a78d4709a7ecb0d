package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("cave_events")

		collection.Fields.Add(
			&core.TextField{Name: "title", Required: true, Max: 200},
			&core.SelectField{
				Name:      "kind",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"scheduled", "ticketed"},
			},
			&core.DateField{Name: "start_time", Required: true},
			&core.DateField{Name: "end_time", Required: true},
			&core.BoolField{Name: "is_active"},
			&core.NumberField{Name: "max_concurrent", OnlyInt: true},
			&core.NumberField{Name: "user_time_limit", OnlyInt: true},
			&core.NumberField{Name: "purchase_cap"},
			&core.NumberField{Name: "max_participations_per_user", OnlyInt: true},
			&core.SelectField{
				Name:      "allowed_pay",
				MaxSelect: 1,
				Values:    []string{"points", "cash", "both"},
			},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("cave_events")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
