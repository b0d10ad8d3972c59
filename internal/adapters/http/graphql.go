package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/usecases"
)

// field resolves a named field off a struct source with a transform applied,
// used for the typed-string and pointer fields the default reflection
// resolver can't coerce into a scalar on its own (OccupancyStatus,
// BunchingSeverity, InterventionType/Priority/Status/Trigger, *float64).
func field(fn func(p graphql.ResolveParams) (interface{}, error)) *graphql.Field {
	return &graphql.Field{Type: graphql.String, Resolve: fn}
}

// buildSchema wires a read-only GraphQL surface over the same use cases the
// REST handlers call: fleet state, detector reports, interventions, and the
// composite health score. It mirrors what /buses, /predictions/*, /ops/*
// already expose, as a query-shaped alternative for dashboard clients that
// want several of them in one round trip.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	vehicleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Vehicle",
		Fields: graphql.Fields{
			"vehicleId":      &graphql.Field{Type: graphql.String},
			"routeId":        &graphql.Field{Type: graphql.String},
			"routeShortName": &graphql.Field{Type: graphql.String},
			"tripId":         &graphql.Field{Type: graphql.String},
			"latitude":       &graphql.Field{Type: graphql.Float},
			"longitude":      &graphql.Field{Type: graphql.Float},
			"speedKmh": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v := p.Source.(domain.VehicleRecord)
					if v.SpeedKmh == nil {
						return nil, nil
					}
					return *v.SpeedKmh, nil
				},
			},
			"occupancyStatus": field(func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.VehicleRecord).Occupancy.String(), nil
			}),
			"delaySeconds": &graphql.Field{Type: graphql.Int},
			"timestamp":    &graphql.Field{Type: graphql.DateTime},
		},
	})

	ghostBusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GhostBus",
		Fields: graphql.Fields{
			"vehicleId":      &graphql.Field{Type: graphql.String},
			"routeId":        &graphql.Field{Type: graphql.String},
			"routeShortName": &graphql.Field{Type: graphql.String},
			"staleSeconds":   &graphql.Field{Type: graphql.Int},
		},
	})

	ghostRouteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GhostRoute",
		Fields: graphql.Fields{
			"routeId":        &graphql.Field{Type: graphql.String},
			"routeShortName": &graphql.Field{Type: graphql.String},
		},
	})

	ghostReportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GhostBusReport",
		Fields: graphql.Fields{
			"ghostBuses":        &graphql.Field{Type: graphql.NewList(ghostBusType)},
			"ghostRoutes":       &graphql.Field{Type: graphql.NewList(ghostRouteType)},
			"totalLiveVehicles": &graphql.Field{Type: graphql.Int},
			"totalGhostVehicles": &graphql.Field{Type: graphql.Int},
			"totalRoutesWithBuses": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.GhostBusReport).TotalRoutesWithBuses, nil
				},
			},
			"totalRoutesWithoutBuses": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.GhostBusReport).TotalRoutesWithoutBus, nil
				},
			},
		},
	})

	bunchingPairType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BunchingPair",
		Fields: graphql.Fields{
			"vehicleA": &graphql.Field{Type: graphql.String},
			"vehicleB": &graphql.Field{Type: graphql.String},
			"distanceMeters": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.BunchingPair).DistanceM, nil
				},
			},
			"severity": field(func(p graphql.ResolveParams) (interface{}, error) {
				return string(p.Source.(domain.BunchingPair).Severity), nil
			}),
		},
	})

	bunchingAlertType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BunchingAlert",
		Fields: graphql.Fields{
			"routeId":   &graphql.Field{Type: graphql.String},
			"routeName": &graphql.Field{Type: graphql.String},
			"pairs":     &graphql.Field{Type: graphql.NewList(bunchingPairType)},
			"pairCount": &graphql.Field{Type: graphql.Int},
		},
	})

	bunchingReportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BunchingReport",
		Fields: graphql.Fields{
			"alerts":     &graphql.Field{Type: graphql.NewList(bunchingAlertType)},
			"totalPairs": &graphql.Field{Type: graphql.Int},
			"routesAffected": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.BunchingReport).RoutesAffected, nil
				},
			},
			"totalLiveVehicles": &graphql.Field{Type: graphql.Int},
		},
	})

	interventionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Intervention",
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.String},
			"type": field(func(p graphql.ResolveParams) (interface{}, error) {
				return string(p.Source.(domain.Intervention).Type), nil
			}),
			"priority": field(func(p graphql.ResolveParams) (interface{}, error) {
				return string(p.Source.(domain.Intervention).Priority), nil
			}),
			"status": field(func(p graphql.ResolveParams) (interface{}, error) {
				return string(p.Source.(domain.Intervention).Status), nil
			}),
			"headline":    &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"routeId":     &graphql.Field{Type: graphql.String},
			"routeName":   &graphql.Field{Type: graphql.String},
			"trigger": field(func(p graphql.ResolveParams) (interface{}, error) {
				return string(p.Source.(domain.Intervention).Trigger), nil
			}),
			"vehicleId":          &graphql.Field{Type: graphql.String},
			"passengersAffected": &graphql.Field{Type: graphql.Int},
			"confidence":         &graphql.Field{Type: graphql.Float},
			"createdAt":          &graphql.Field{Type: graphql.DateTime},
			"expiresAt":          &graphql.Field{Type: graphql.DateTime},
		},
	})

	healthComponentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HealthComponent",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"score":    &graphql.Field{Type: graphql.Float},
			"weight":   &graphql.Field{Type: graphql.Float},
			"weighted": &graphql.Field{Type: graphql.Float},
		},
	})

	routeHealthType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteHealth",
		Fields: graphql.Fields{
			"routeId":     &graphql.Field{Type: graphql.String},
			"routeName":   &graphql.Field{Type: graphql.String},
			"healthScore": &graphql.Field{Type: graphql.Float},
			"status":      &graphql.Field{Type: graphql.String},
		},
	})

	healthReportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HealthReport",
		Fields: graphql.Fields{
			"score":                &graphql.Field{Type: graphql.Int},
			"grade":                &graphql.Field{Type: graphql.String},
			"status":               &graphql.Field{Type: graphql.String},
			"components":           &graphql.Field{Type: graphql.NewList(healthComponentType)},
			"topRoutes":            &graphql.Field{Type: graphql.NewList(routeHealthType)},
			"totalLiveVehicles":    &graphql.Field{Type: graphql.Int},
			"totalRoutesActive":    &graphql.Field{Type: graphql.Int},
			"interventionsPending": &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"vehicles": &graphql.Field{
				Type:        graphql.NewList(vehicleType),
				Description: "Current fleet snapshot",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					vehicles, _, err := usecases.ListFleet(p.Context, deps.Store)
					return vehicles, err
				},
			},
			"vehicle": &graphql.Field{
				Type:        vehicleType,
				Description: "A single vehicle by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					v, ok, err := usecases.GetVehicle(p.Context, deps.Store, id)
					if err != nil || !ok {
						return nil, err
					}
					return v, nil
				},
			},
			"ghosts": &graphql.Field{
				Type:        ghostReportType,
				Description: "Ghost bus detection report",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return usecases.DetectGhosts(p.Context, deps.Store, deps.Catalog, time.Now())
				},
			},
			"bunching": &graphql.Field{
				Type:        bunchingReportType,
				Description: "Bus bunching detection report",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return usecases.DetectBunching(p.Context, deps.Store, deps.Catalog, time.Now())
				},
			},
			"interventions": &graphql.Field{
				Type:        graphql.NewList(interventionType),
				Description: "Active controller interventions",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return usecases.ActiveInterventions(p.Context, deps.Store)
				},
			},
			"health": &graphql.Field{
				Type:        healthReportType,
				Description: "Composite network health score",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return usecases.ComputeHealth(p.Context, deps.Store, deps.Catalog, time.Now())
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// GraphQLHandler serves the read-only GraphQL endpoint built by buildSchema.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
