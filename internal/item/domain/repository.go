package domain

import "github.com/smallbiznis/billdesk/pkg/repository"

// Repository is the generic store specialised for catalog items.
type Repository = repository.Repository[Item]
