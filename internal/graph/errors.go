package graph

import (
	"github.com/botobag/artemis/graphql"

	"github.com/shelfmark/shelfmark-server/internal/errors"
)

// gqlError converts a domain error into a graphql.Error carrying the
// machine-readable code in the extensions. Unknown errors are masked behind a
// generic message so internals never leak into responses.
func gqlError(err error) error {
	var domainErr *errors.Error
	if !errors.As(err, &domainErr) {
		return graphql.NewError("internal server error", graphql.ErrorExtensions{
			"code": errors.CodeInternal.GraphQLCode(),
		}, err)
	}

	extensions := graphql.ErrorExtensions{
		"code": domainErr.Code.GraphQLCode(),
	}
	if domainErr.Details != nil {
		extensions["invalidArgs"] = domainErr.Details
	}

	return graphql.NewError(domainErr.Message, extensions, err)
}
