package server

import (
	"log/slog"
	"net/http"

	"civ-server/internal/building"
	buildingHandlers "civ-server/internal/building/handlers"
	"civ-server/internal/diplomacy"
	diplomacyHandlers "civ-server/internal/diplomacy/handlers"
	"civ-server/internal/game"
	gameHandlers "civ-server/internal/game/handlers"
	"civ-server/internal/hexmap"
	mapHandlers "civ-server/internal/hexmap/handlers"
	serverHandlers "civ-server/internal/server/handlers"
	"civ-server/internal/shared/database"
	"civ-server/internal/tech"
	techHandlers "civ-server/internal/tech/handlers"
	"civ-server/internal/turn"
	turnHandlers "civ-server/internal/turn/handlers"
	"civ-server/internal/unit"
	unitHandlers "civ-server/internal/unit/handlers"
)

type Routes struct {
	db               *database.DB
	gameService      *game.Service
	turnService      *turn.Service
	techService      *tech.Service
	buildingService  *building.Service
	unitService      *unit.Service
	mapService       *hexmap.Service
	diplomacyService *diplomacy.Service
	logger           *slog.Logger
}

func NewRoutes(
	db *database.DB,
	gameService *game.Service,
	turnService *turn.Service,
	techService *tech.Service,
	buildingService *building.Service,
	unitService *unit.Service,
	mapService *hexmap.Service,
	diplomacyService *diplomacy.Service,
	logger *slog.Logger,
) *Routes {
	return &Routes{
		db:               db,
		gameService:      gameService,
		turnService:      turnService,
		techService:      techService,
		buildingService:  buildingService,
		unitService:      unitService,
		mapService:       mapService,
		diplomacyService: diplomacyService,
		logger:           logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db)
	gameHandler := gameHandlers.NewGameHandler(r.gameService)
	turnHandler := turnHandlers.NewTurnHandler(r.turnService)
	techHandler := techHandlers.NewTechHandler(r.techService)
	buildingHandler := buildingHandlers.NewBuildingHandler(r.buildingService)
	unitHandler := unitHandlers.NewUnitHandler(r.unitService)
	mapHandler := mapHandlers.NewMapHandler(r.mapService)
	diplomacyHandler := diplomacyHandlers.NewDiplomacyHandler(r.diplomacyService)

	mux.Handle("/api/server/health", healthHandler)

	// Games and turn advancement
	mux.HandleFunc("/api/games", gameHandler.GetGames)
	mux.HandleFunc("/api/games/{id}", gameHandler.GetGame)
	mux.HandleFunc("/api/games/{id}/state", gameHandler.GetState)
	mux.HandleFunc("/api/games/{id}/turn/end", turnHandler.EndTurn)

	// Technology catalog and per-civilization research
	mux.HandleFunc("/api/technologies", techHandler.GetTechnologies)
	mux.HandleFunc("/api/technologies/{id}", techHandler.GetTechnology)
	mux.HandleFunc("/api/game-civs/{id}/research-status", techHandler.GetResearchStatus)
	mux.HandleFunc("/api/game-civs/{id}/research-queue", techHandler.ResearchQueue)
	mux.HandleFunc("/api/game-civs/{id}/research-queue/{queueId}", techHandler.RemoveQueueEntry)
	mux.HandleFunc("/api/game-civs/{id}/research/start", techHandler.StartResearch)
	mux.HandleFunc("/api/game-civs/{id}/research/cancel", techHandler.CancelResearch)

	// Building catalog and per-city construction
	mux.HandleFunc("/api/buildings", buildingHandler.GetBuildings)
	mux.HandleFunc("/api/buildings/{id}", buildingHandler.GetBuilding)
	mux.HandleFunc("/api/cities/{id}/buildings", buildingHandler.GetCityBuildings)
	mux.HandleFunc("/api/cities/{id}/build-queue", buildingHandler.BuildQueue)
	mux.HandleFunc("/api/cities/{id}/build-queue/{queueId}", buildingHandler.RemoveQueueEntry)
	mux.HandleFunc("/api/cities/{id}/build/start", buildingHandler.StartConstruction)
	mux.HandleFunc("/api/cities/{id}/build/cancel", buildingHandler.CancelConstruction)

	// Unit catalog and per-city production
	mux.HandleFunc("/api/units", unitHandler.GetUnitTypes)
	mux.HandleFunc("/api/units/{id}", unitHandler.GetUnitType)
	mux.HandleFunc("/api/game-civs/{id}/units", unitHandler.GetCivUnits)
	mux.HandleFunc("/api/cities/{id}/production-queue", unitHandler.ProductionQueue)
	mux.HandleFunc("/api/cities/{id}/production-queue/{queueId}", unitHandler.RemoveQueueEntry)

	// Map reads
	mux.HandleFunc("/api/maps/{gameId}/tiles", mapHandler.GetTiles)
	mux.HandleFunc("/api/maps/{gameId}/adjacent", mapHandler.GetAdjacent)

	// Diplomacy sessions
	mux.HandleFunc("/api/diplomacy/first-encounter", diplomacyHandler.FirstEncounter)
	mux.HandleFunc("/api/diplomacy/messages", diplomacyHandler.SendMessage)
	mux.HandleFunc("/api/diplomacy/resume", diplomacyHandler.Resume)
	mux.HandleFunc("/api/diplomacy/{playerId}/relationship/{civId}", diplomacyHandler.GetRelationship)
	mux.HandleFunc("/api/diplomacy/{playerId}/history/{civId}", diplomacyHandler.GetHistory)
	mux.HandleFunc("/api/diplomacy/{playerId}/relationships", diplomacyHandler.GetAllRelationships)

	logger.Debug("Routes setup completed")
	return mux
}
