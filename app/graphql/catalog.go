// Package graphql exposes the catalog as a read-only GraphQL schema:
//
//	{ products { id name price } }
//	{ product(id: 3) { name description imageUrl } }
package graphql

import (
	"time"

	"github.com/graphql-go/graphql"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/apperr"
	gql "github.com/freshbulk/storefront/pkg/graphql"
)

func product(p graphql.ResolveParams) models.Product {
	switch v := p.Source.(type) {
	case models.Product:
		return v
	case *models.Product:
		return *v
	}
	return models.Product{}
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Product",
	Description: "A catalog entry priced per kilogram.",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.Int),
			Resolve: func(p graphql.ResolveParams) (any, error) { return int(product(p).ID), nil },
		},
		"name": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) { return product(p).Name, nil },
		},
		"description": &graphql.Field{
			Type:    graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) { return optional(product(p).Description), nil },
		},
		"price": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Float),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				f, _ := product(p).Price.Float64()
				return f, nil
			},
		},
		"imageUrl": &graphql.Field{
			Type:    graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) { return optional(product(p).ImageURL), nil },
		},
		"updatedAt": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return product(p).UpdatedAt.UTC().Format(time.RFC3339), nil
			},
		},
	},
})

// Schema builds the catalog schema over catalog.
func Schema(catalog *services.CatalogService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(productType))),
				Description: "The live catalog sorted by name.",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return catalog.List(p.Context)
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(int)
					if id <= 0 {
						return nil, nil
					}
					prod, err := catalog.Get(p.Context, uint(id))
					if apperr.KindOf(err) == apperr.KindNotFound {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return prod, nil
				},
			},
		},
	})
	return gql.NewSchema(query)
}
