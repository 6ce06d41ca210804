// Package graph exposes the catalog over GraphQL: the schema, the resolvers
// delegating to the services, the HTTP query endpoint and the SSE
// subscription transport.
package graph

import (
	"context"
	"log/slog"

	"github.com/botobag/artemis/graphql"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/errors"
	"github.com/shelfmark/shelfmark-server/internal/pubsub"
	"github.com/shelfmark/shelfmark-server/internal/service"
)

// Resolver wires the schema's fields to the catalog and auth services.
type Resolver struct {
	catalog *service.CatalogService
	auth    *service.AuthService
	logger  *slog.Logger
}

// NewResolver creates a new resolver.
func NewResolver(catalog *service.CatalogService, auth *service.AuthService, logger *slog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		auth:    auth,
		logger:  logger,
	}
}

// NewSchema builds the GraphQL schema served by the API.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	authorType := graphql.MustNewObject(&graphql.ObjectConfig{
		Name: "Author",
		Fields: graphql.Fields{
			"name": {
				Type: graphql.NonNullOfType(graphql.String()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					author, err := authorOf(source)
					if err != nil {
						return nil, err
					}
					return author.Name, nil
				}),
			},
			"born": {
				Type: graphql.T(graphql.Int()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					author, err := authorOf(source)
					if err != nil {
						return nil, err
					}
					if author.Born == nil {
						return nil, nil
					}
					return *author.Born, nil
				}),
			},
			"bookCount": {
				Type:     graphql.NonNullOfType(graphql.Int()),
				Resolver: graphql.FieldResolverFunc(r.resolveAuthorBookCount),
			},
			"id": {
				Type: graphql.NonNullOfType(graphql.ID()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					author, err := authorOf(source)
					if err != nil {
						return nil, err
					}
					return author.ID, nil
				}),
			},
		},
	})

	bookType := graphql.MustNewObject(&graphql.ObjectConfig{
		Name: "Book",
		Fields: graphql.Fields{
			"title": {
				Type: graphql.NonNullOfType(graphql.String()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					book, err := bookOf(source)
					if err != nil {
						return nil, err
					}
					return book.Title, nil
				}),
			},
			"published": {
				Type: graphql.NonNullOfType(graphql.Int()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					book, err := bookOf(source)
					if err != nil {
						return nil, err
					}
					return book.Published, nil
				}),
			},
			"author": {
				Type:     graphql.NonNullOfType(authorType),
				Resolver: graphql.FieldResolverFunc(r.resolveBookAuthor),
			},
			"genres": {
				Type: graphql.NonNullOf(graphql.ListOf(graphql.NonNullOfType(graphql.String()))),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					book, err := bookOf(source)
					if err != nil {
						return nil, err
					}
					return book.Genres, nil
				}),
			},
			"id": {
				Type: graphql.NonNullOfType(graphql.ID()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					book, err := bookOf(source)
					if err != nil {
						return nil, err
					}
					return book.ID, nil
				}),
			},
		},
	})

	userType := graphql.MustNewObject(&graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"username": {
				Type: graphql.NonNullOfType(graphql.String()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					user, err := userOf(source)
					if err != nil {
						return nil, err
					}
					return user.Username, nil
				}),
			},
			"favoriteGenre": {
				Type: graphql.NonNullOfType(graphql.String()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					user, err := userOf(source)
					if err != nil {
						return nil, err
					}
					return user.FavoriteGenre, nil
				}),
			},
			"id": {
				Type: graphql.NonNullOfType(graphql.ID()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					user, err := userOf(source)
					if err != nil {
						return nil, err
					}
					return user.ID, nil
				}),
			},
		},
	})

	tokenType := graphql.MustNewObject(&graphql.ObjectConfig{
		Name: "Token",
		Fields: graphql.Fields{
			"value": {
				Type: graphql.NonNullOfType(graphql.String()),
				Resolver: graphql.FieldResolverFunc(func(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
					token, ok := source.(string)
					if !ok {
						return nil, errors.Internal("unexpected token source")
					}
					return token, nil
				}),
			},
		},
	})

	queryType := graphql.MustNewObject(&graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"authorCount": {
				Type:     graphql.NonNullOfType(graphql.Int()),
				Resolver: graphql.FieldResolverFunc(r.resolveAuthorCount),
			},
			"bookCount": {
				Type: graphql.NonNullOfType(graphql.Int()),
				Args: graphql.ArgumentConfigMap{
					"author": {Type: graphql.T(graphql.String())},
				},
				Resolver: graphql.FieldResolverFunc(r.resolveBookCount),
			},
			"allBooks": {
				Type: graphql.NonNullOf(graphql.ListOf(graphql.NonNullOfType(bookType))),
				Args: graphql.ArgumentConfigMap{
					"author": {Type: graphql.T(graphql.String())},
					"genre":  {Type: graphql.T(graphql.String())},
				},
				Resolver: graphql.FieldResolverFunc(r.resolveAllBooks),
			},
			"allAuthors": {
				Type:     graphql.NonNullOf(graphql.ListOf(graphql.NonNullOfType(authorType))),
				Resolver: graphql.FieldResolverFunc(r.resolveAllAuthors),
			},
			"me": {
				Type:     graphql.T(userType),
				Resolver: graphql.FieldResolverFunc(r.resolveMe),
			},
		},
	})

	mutationType := graphql.MustNewObject(&graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addBook": {
				Type: graphql.T(bookType),
				Args: graphql.ArgumentConfigMap{
					"title":     {Type: graphql.NonNullOfType(graphql.String())},
					"published": {Type: graphql.NonNullOfType(graphql.Int())},
					"author":    {Type: graphql.NonNullOfType(graphql.String())},
					"genres":    {Type: graphql.NonNullOf(graphql.ListOf(graphql.NonNullOfType(graphql.String())))},
				},
				Resolver: graphql.FieldResolverFunc(r.resolveAddBook),
			},
			"editAuthor": {
				Type: graphql.T(authorType),
				Args: graphql.ArgumentConfigMap{
					"name":      {Type: graphql.NonNullOfType(graphql.String())},
					"setBornTo": {Type: graphql.NonNullOfType(graphql.Int())},
				},
				Resolver: graphql.FieldResolverFunc(r.resolveEditAuthor),
			},
			"createUser": {
				Type: graphql.T(userType),
				Args: graphql.ArgumentConfigMap{
					"username":      {Type: graphql.NonNullOfType(graphql.String())},
					"favoriteGenre": {Type: graphql.NonNullOfType(graphql.String())},
					"password":      {Type: graphql.NonNullOfType(graphql.String())},
				},
				Resolver: graphql.FieldResolverFunc(r.resolveCreateUser),
			},
			"login": {
				Type: graphql.T(tokenType),
				Args: graphql.ArgumentConfigMap{
					"username": {Type: graphql.NonNullOfType(graphql.String())},
					"password": {Type: graphql.NonNullOfType(graphql.String())},
				},
				Resolver: graphql.FieldResolverFunc(r.resolveLogin),
			},
		},
	})

	subscriptionType := graphql.MustNewObject(&graphql.ObjectConfig{
		Name: "Subscription",
		Fields: graphql.Fields{
			"bookAdded": {
				Type:     graphql.NonNullOfType(bookType),
				Resolver: graphql.FieldResolverFunc(r.resolveBookAdded),
			},
		},
	})

	return graphql.NewSchema(&graphql.SchemaConfig{
		Query:        queryType,
		Mutation:     mutationType,
		Subscription: subscriptionType,
	})
}

func (r *Resolver) resolveAuthorCount(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	count, err := r.catalog.AuthorCount(ctx)
	if err != nil {
		return nil, gqlError(err)
	}
	return count, nil
}

func (r *Resolver) resolveBookCount(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	count, err := r.catalog.BookCount(ctx, stringArg(info, "author"))
	if err != nil {
		return nil, gqlError(err)
	}
	return count, nil
}

func (r *Resolver) resolveAllBooks(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	books, err := r.catalog.AllBooks(ctx, stringArg(info, "author"), stringArg(info, "genre"))
	if err != nil {
		return nil, gqlError(err)
	}
	return books, nil
}

func (r *Resolver) resolveAllAuthors(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	authors, err := r.catalog.AllAuthors(ctx)
	if err != nil {
		return nil, gqlError(err)
	}
	return authors, nil
}

// resolveMe returns the authenticated user, or null for anonymous requests.
// An invalid token counts as anonymous here rather than failing the query.
func (r *Resolver) resolveMe(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	user, err := UserFrom(ctx)
	if err != nil || user == nil {
		return nil, nil
	}
	return user, nil
}

func (r *Resolver) resolveAddBook(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	user, err := UserFrom(ctx)
	if err != nil {
		return nil, gqlError(err)
	}

	input := domain.AddBookInput{
		Title:     stringArg(info, "title"),
		Published: intArg(info, "published"),
		Author:    stringArg(info, "author"),
		Genres:    stringListArg(info, "genres"),
	}

	book, err := r.catalog.AddBook(ctx, user, input)
	if err != nil {
		return nil, gqlError(err)
	}
	return book, nil
}

func (r *Resolver) resolveEditAuthor(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	user, err := UserFrom(ctx)
	if err != nil {
		return nil, gqlError(err)
	}

	author, err := r.catalog.EditAuthor(ctx, user, stringArg(info, "name"), intArg(info, "setBornTo"))
	if err != nil {
		return nil, gqlError(err)
	}
	return author, nil
}

func (r *Resolver) resolveCreateUser(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	input := domain.CreateUserInput{
		Username:      stringArg(info, "username"),
		FavoriteGenre: stringArg(info, "favoriteGenre"),
		Password:      stringArg(info, "password"),
	}

	user, err := r.auth.CreateUser(ctx, input)
	if err != nil {
		return nil, gqlError(err)
	}
	return user, nil
}

func (r *Resolver) resolveLogin(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	token, err := r.auth.Login(ctx, stringArg(info, "username"), stringArg(info, "password"))
	if err != nil {
		return nil, gqlError(err)
	}
	return token, nil
}

// resolveBookAuthor re-fetches the book's author with its derived book count.
func (r *Resolver) resolveBookAuthor(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	book, err := bookOf(source)
	if err != nil {
		return nil, err
	}

	author, err := r.catalog.ResolveAuthor(ctx, book)
	if err != nil {
		return nil, gqlError(err)
	}
	return author, nil
}

// resolveAuthorBookCount returns the precomputed count when the source
// already carries one, and derives it from the store otherwise.
func (r *Resolver) resolveAuthorBookCount(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	switch a := source.(type) {
	case *domain.AuthorWithCount:
		return a.BookCount, nil
	case domain.AuthorWithCount:
		return a.BookCount, nil
	}

	author, err := authorOf(source)
	if err != nil {
		return nil, err
	}

	count, err := r.catalog.AuthorBookCount(ctx, author.ID)
	if err != nil {
		return nil, gqlError(err)
	}
	return count, nil
}

// resolveBookAdded surfaces the published book carried as the operation's
// root value.
func (r *Resolver) resolveBookAdded(ctx context.Context, source interface{}, info graphql.ResolveInfo) (interface{}, error) {
	if event, ok := source.(pubsub.Event); ok {
		source = event.Payload
	}
	book, err := bookOf(source)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func authorOf(source interface{}) (*domain.Author, error) {
	switch a := source.(type) {
	case *domain.Author:
		return a, nil
	case domain.Author:
		return &a, nil
	case *domain.AuthorWithCount:
		return &a.Author, nil
	case domain.AuthorWithCount:
		return &a.Author, nil
	default:
		return nil, errors.Internal("unexpected author source")
	}
}

func bookOf(source interface{}) (*domain.Book, error) {
	switch b := source.(type) {
	case *domain.Book:
		return b, nil
	case domain.Book:
		return &b, nil
	default:
		return nil, errors.Internal("unexpected book source")
	}
}

func userOf(source interface{}) (*domain.User, error) {
	switch u := source.(type) {
	case *domain.User:
		return u, nil
	case domain.User:
		return &u, nil
	default:
		return nil, errors.Internal("unexpected user source")
	}
}
