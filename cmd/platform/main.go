package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/altf4-games/credshield-node/internal/api"
	"github.com/altf4-games/credshield-node/internal/buildinfo"
	"github.com/altf4-games/credshield-node/internal/cache"
	"github.com/altf4-games/credshield-node/internal/config"
	"github.com/altf4-games/credshield-node/internal/core/ports"
	"github.com/altf4-games/credshield-node/internal/core/services"
	contracts "github.com/altf4-games/credshield-node/internal/eth"
	"github.com/altf4-games/credshield-node/internal/gateways"
	"github.com/altf4-games/credshield-node/internal/health"
	"github.com/altf4-games/credshield-node/internal/log"
	"github.com/altf4-games/credshield-node/internal/redis"
	"github.com/altf4-games/credshield-node/internal/registry"
	"github.com/altf4-games/credshield-node/pkg/blockchain/eth"
	"github.com/altf4-games/credshield-node/pkg/loaders"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Error(context.Background(), "cannot load config", err)
		return
	}
	if err := cfg.Sanitize(); err != nil {
		log.Error(context.Background(), "invalid config", err)
		return
	}

	ctx, cancel := context.WithCancel(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout))
	defer cancel()

	log.Info(ctx, "starting credshield node", "revision", buildinfo.Revision())

	pingers := make([]health.Ping, 0, 2)

	recordMirror := cache.NewNullCache()
	if cfg.Cache.RedisUrl != "" {
		rdb, err := redis.Open(ctx, cfg.Cache.RedisUrl)
		if err != nil {
			log.Error(ctx, "cannot connect to redis", err, "url", cfg.Cache.RedisUrl)
			return
		}
		recordMirror = cache.NewRedisCache(rdb)
		pingers = append(pingers, redis.NewWrapper(rdb))
	}

	codeRegistry := registry.New(cfg.Registry.CodeTTL, registry.WithMirror(recordMirror))

	var generator ports.ZKGenerator
	var zkVerifier ports.ZKVerifier
	if cfg.NativeProofGenerationEnabled {
		native := services.NewNativeProverService(&services.NativeProverConfig{
			CircuitsLoader: loaders.NewCircuits(cfg.Circuit.Path),
		})
		generator, zkVerifier = native, native
	} else {
		external := gateways.NewProverService(&gateways.ProverConfig{
			ServerURL:       cfg.Prover.ServerURL,
			ResponseTimeout: cfg.Prover.ResponseTimeout,
		})
		generator, zkVerifier = external, external
	}

	engine := services.NewProofEngine(generator, zkVerifier, services.ProofEngineConfig{
		CircuitName:    cfg.Circuit.Name,
		ProvingTimeout: cfg.Prover.ProvingTimeout,
	})

	rpc, err := ethclient.Dial(cfg.Ethereum.URL)
	if err != nil {
		log.Error(ctx, "cannot connect to ethereum node", err, "url", cfg.Ethereum.URL)
		return
	}
	ethClient := eth.NewClient(rpc, &eth.ClientConfig{
		ReceiptTimeout:       cfg.Ethereum.ReceiptTimeout,
		DefaultGasLimit:      cfg.Ethereum.DefaultGasLimit,
		MinGasPrice:          big.NewInt(int64(cfg.Ethereum.MinGasPrice)),
		MaxGasPrice:          big.NewInt(int64(cfg.Ethereum.MaxGasPrice)),
		RPCResponseTimeout:   cfg.Ethereum.RPCResponseTimeout,
		WaitReceiptCycleTime: cfg.Ethereum.WaitReceiptCycleTime,
	})
	pingers = append(pingers, ethClient)

	contract, err := contracts.NewAcademicVerifier(common.HexToAddress(cfg.Ethereum.ContractAddress), rpc)
	if err != nil {
		log.Error(ctx, "cannot bind attestation contract", err)
		return
	}

	privateKey, err := crypto.HexToECDSA(cfg.Ethereum.PrivateKey)
	if err != nil {
		log.Error(ctx, "cannot parse submitter private key", err)
		return
	}

	ledger := gateways.NewAttestationGateway(ethClient, contract, privateKey)

	var extractor ports.DocumentExtractor
	if cfg.Extractor.ServerURL != "" {
		extractor = gateways.NewDocumentExtractor(gateways.ExtractorConfig{
			ServerURL:       cfg.Extractor.ServerURL,
			APIKey:          cfg.Extractor.APIKey,
			Model:           cfg.Extractor.Model,
			ResponseTimeout: cfg.Extractor.ResponseTimeout,
		})
	}

	verification := services.NewVerification(services.Mode(cfg.Mode), engine, codeRegistry, ledger, extractor)

	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		middleware.Recoverer,
		cors.AllowAll().Handler,
		api.LogMiddleware(ctx),
		log.ChiMiddleware(ctx),
	)
	api.NewServer(verification, health.New(pingers...)).Routes(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, "server started", "port", cfg.ServerPort, "mode", cfg.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "starting http server", err)
		}
	}()

	<-quit
	log.Info(ctx, "shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutting down http server", err)
	}
}
