package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository instances.
type Repositories struct {
	InboundEvent   InboundEventRepository
	OutboundEvent  OutboundEventRepository
	PublishedEvent PublishedEventRepository
}

// NewRepositories creates all repositories sharing one DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		InboundEvent:   NewInboundEventRepository(db),
		OutboundEvent:  NewOutboundEventRepository(db),
		PublishedEvent: NewPublishedEventRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetInboundEventRepository returns the inbound event repository instance
func (f *Factory) GetInboundEventRepository() InboundEventRepository {
	return f.GetRepositories().InboundEvent
}

// GetOutboundEventRepository returns the outbound event repository instance
func (f *Factory) GetOutboundEventRepository() OutboundEventRepository {
	return f.GetRepositories().OutboundEvent
}

// GetPublishedEventRepository returns the published event repository instance
func (f *Factory) GetPublishedEventRepository() PublishedEventRepository {
	return f.GetRepositories().PublishedEvent
}
