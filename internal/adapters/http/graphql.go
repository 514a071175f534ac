package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	budgetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RenderBudget",
		Fields: graphql.Fields{
			"low":    &graphql.Field{Type: graphql.Int},
			"medium": &graphql.Field{Type: graphql.Int},
			"high":   &graphql.Field{Type: graphql.Int},
		},
	})

	profileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Profile",
		Fields: graphql.Fields{
			"name":       &graphql.Field{Type: graphql.String},
			"radius":     &graphql.Field{Type: graphql.Float},
			"extent":     &graphql.Field{Type: graphql.Float},
			"node_size":  &graphql.Field{Type: graphql.Int},
			"min_points": &graphql.Field{Type: graphql.Int},
			"min_zoom":   &graphql.Field{Type: graphql.Int},
			"max_zoom":   &graphql.Field{Type: graphql.Int},
			"budgets":    &graphql.Field{Type: budgetType},
			"debounce_ms": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return int(p.Source.(domain.PerformanceProfile).Debounce.Milliseconds()), nil
				},
			},
			"disable_clustering": &graphql.Field{Type: graphql.Boolean},
		},
	})

	marketType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Market",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"latitude":     &graphql.Field{Type: graphql.Float},
			"longitude":    &graphql.Field{Type: graphql.Float},
			"address":      &graphql.Field{Type: graphql.String},
			"city":         &graphql.Field{Type: graphql.String},
			"state":        &graphql.Field{Type: graphql.String},
			"zip_code":     &graphql.Field{Type: graphql.String},
			"hours":        &graphql.Field{Type: graphql.String},
			"is_open":      &graphql.Field{Type: graphql.Boolean},
			"accepts_snap": &graphql.Field{Type: graphql.Boolean},
			"accepts_wic":  &graphql.Field{Type: graphql.Boolean},
			"phone":        &graphql.Field{Type: graphql.String},
			"website":      &graphql.Field{Type: graphql.String},
			"is_favorite":  &graphql.Field{Type: graphql.Boolean},
			"distance":     &graphql.Field{Type: graphql.Float},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"key":        &graphql.Field{Type: graphql.String},
			"kind":       &graphql.Field{Type: graphql.String},
			"coordinate": &graphql.Field{Type: coordinateType},
			"count":      &graphql.Field{Type: graphql.Int},
			"badge":      &graphql.Field{Type: graphql.String},
			"icon":       &graphql.Field{Type: graphql.String},
			"cluster_id": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m := p.Source.(domain.Marker)
					if m.Kind != domain.MarkerCluster {
						return nil, nil
					}
					return m.Event.ClusterID, nil
				},
			},
			"expansion_zoom": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.Marker).Event.ExpansionZoom, nil
				},
			},
			"market": &graphql.Field{
				Type: marketType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.Marker).Event.Market, nil
				},
			},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClusterView",
		Fields: graphql.Fields{
			"platform":  &graphql.Field{Type: graphql.String},
			"zoom":      &graphql.Field{Type: graphql.Int},
			"band":      &graphql.Field{Type: graphql.String},
			"total":     &graphql.Field{Type: graphql.Int},
			"fallback":  &graphql.Field{Type: graphql.Boolean},
			"truncated": &graphql.Field{Type: graphql.Boolean},
			"markers":   &graphql.Field{Type: graphql.NewList(markerType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"profiles": &graphql.Field{
				Type:        graphql.NewList(profileType),
				Description: "Performance profiles of all platforms",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []domain.PerformanceProfile
					for _, name := range deps.Profiles.Platforms() {
						prof, _ := deps.Profiles.Profile(name)
						out = append(out, prof)
					}
					return out, nil
				},
			},
			"market": &graphql.Field{
				Type:        marketType,
				Description: "Get a market by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Markets.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"marketsNearby": &graphql.Field{
				Type:        graphql.NewList(marketType),
				Description: "Find markets near a location (radius in miles)",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 25.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Markets.FindNearby(p.Context, lat, lon, radius, limit)
				},
			},
			"clusters": &graphql.Field{
				Type:        viewType,
				Description: "Clustered markers for a map region",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lat_span": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon_span": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"platform": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					region := domain.MapRegion{
						CenterLat: p.Args["lat"].(float64),
						CenterLon: p.Args["lon"].(float64),
						LatSpan:   p.Args["lat_span"].(float64),
						LonSpan:   p.Args["lon_span"].(float64),
					}
					profile, _ := deps.Profiles.Profile(p.Args["platform"].(string))
					return computeView(p.Context, deps, region, profile)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// programming error in the schema definition
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
