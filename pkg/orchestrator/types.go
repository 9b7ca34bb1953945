package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

// Number is a wire integer. It is written as a decimal string and read from
// either a JSON string or a JSON number.
type Number string

// UnmarshalJSON accepts "123", "0x7b" and 123
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("invalid number: %s", string(data))
	}
	*n = Number(num.String())
	return nil
}

func numberOf(v *big.Int) Number {
	return Number(models.ValueOf(v).String())
}

func numberOfUint(v uint64) Number {
	return Number(fmt.Sprint(v))
}

// Big parses the number, treating an empty value as zero
func (n Number) Big() (*big.Int, error) {
	if n == "" {
		return new(big.Int), nil
	}
	v, ok := math.ParseBig256(string(n))
	if !ok {
		return nil, fmt.Errorf("invalid integer: %s", string(n))
	}
	return v, nil
}

// Uint64 parses the number as a uint64
func (n Number) Uint64() (uint64, error) {
	if n == "" {
		return 0, nil
	}
	v, ok := math.ParseUint64(string(n))
	if !ok {
		return 0, fmt.Errorf("invalid uint64: %s", string(n))
	}
	return v, nil
}

func addressOf(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %s", s)
	}
	return common.HexToAddress(s), nil
}

func bytesOf(b []byte) string {
	return hexutil.Encode(b)
}

func parseBytes(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %v", s, err)
	}
	return b, nil
}

func parseHash(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	b, err := parseBytes(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash length %d: %s", len(b), s)
	}
	return common.BytesToHash(b), nil
}

// CallJSON is a call on the wire
type CallJSON struct {
	To    string `json:"to"`
	Value Number `json:"value"`
	Data  string `json:"data"`
}

func callsToJSON(calls []models.Call) []CallJSON {
	out := make([]CallJSON, len(calls))
	for i, c := range calls {
		out[i] = CallJSON{To: addressOf(c.To), Value: numberOf(c.Value), Data: bytesOf(c.Data)}
	}
	return out
}

func callsFromJSON(calls []CallJSON) ([]models.Call, error) {
	out := make([]models.Call, len(calls))
	for i, c := range calls {
		to, err := parseAddress(c.To)
		if err != nil {
			return nil, fmt.Errorf("call %d: %v", i, err)
		}
		value, err := c.Value.Big()
		if err != nil {
			return nil, fmt.Errorf("call %d: %v", i, err)
		}
		data, err := parseBytes(c.Data)
		if err != nil {
			return nil, fmt.Errorf("call %d: %v", i, err)
		}
		out[i] = models.Call{To: to, Value: value, Data: data}
	}
	return out, nil
}

type opsJSON struct {
	VT  string     `json:"vt"`
	Ops []CallJSON `json:"ops"`
}

type qualifierJSON struct {
	SettlementLayer string `json:"settlementLayer"`
	FundingMethod   string `json:"fundingMethod"`
	Using7579       bool   `json:"using7579"`
	EncodedVal      string `json:"encodedVal"`
}

type mandateJSON struct {
	Recipient          string        `json:"recipient"`
	TokenOut           [][2]Number   `json:"tokenOut"`
	DestinationChainID Number        `json:"destinationChainId"`
	FillDeadline       Number        `json:"fillDeadline"`
	MinGas             Number        `json:"minGas"`
	PreClaimOps        opsJSON       `json:"preClaimOps"`
	DestinationOps     opsJSON       `json:"destinationOps"`
	Qualifier          qualifierJSON `json:"qualifier"`
	DepositID          Number        `json:"depositId,omitempty"`
	UserOpHash         string        `json:"userOpHash,omitempty"`
	MaxFeeBps          uint32        `json:"maxFeeBps,omitempty"`
}

type elementJSON struct {
	Arbiter       string      `json:"arbiter"`
	ChainID       Number      `json:"chainId"`
	IdsAndAmounts [][2]Number `json:"idsAndAmounts"`
	Mandate       mandateJSON `json:"mandate"`
}

// IntentOpJSON is a settlement bundle on the wire
type IntentOpJSON struct {
	Sponsor         string        `json:"sponsor"`
	Nonce           Number        `json:"nonce"`
	Expires         Number        `json:"expires"`
	Elements        []elementJSON `json:"elements"`
	ServerSignature string        `json:"serverSignature,omitempty"`
	SignedMetadata  string        `json:"signedMetadata,omitempty"`
}

func pairsToJSON(pairs []models.TokenAmount) [][2]Number {
	out := make([][2]Number, len(pairs))
	for i, p := range pairs {
		out[i] = [2]Number{numberOf(p.ID), numberOf(p.Amount)}
	}
	return out
}

func pairsFromJSON(pairs [][2]Number) ([]models.TokenAmount, error) {
	out := make([]models.TokenAmount, len(pairs))
	for i, p := range pairs {
		id, err := p[0].Big()
		if err != nil {
			return nil, err
		}
		amount, err := p[1].Big()
		if err != nil {
			return nil, err
		}
		out[i] = models.TokenAmount{ID: id, Amount: amount}
	}
	return out, nil
}

func opsToJSON(o models.Ops) opsJSON {
	return opsJSON{VT: o.VT.Hex(), Ops: callsToJSON(o.Calls)}
}

func opsFromJSON(o opsJSON) (models.Ops, error) {
	vt, err := parseHash(o.VT)
	if err != nil {
		return models.Ops{}, err
	}
	calls, err := callsFromJSON(o.Ops)
	if err != nil {
		return models.Ops{}, err
	}
	return models.Ops{VT: vt, Calls: calls}, nil
}

// IntentOpToJSON converts a bundle to its wire form
func IntentOpToJSON(op *models.IntentOp) *IntentOpJSON {
	out := &IntentOpJSON{
		Sponsor:  addressOf(op.Sponsor),
		Nonce:    numberOf(op.Nonce),
		Expires:  numberOf(op.Expires),
		Elements: make([]elementJSON, len(op.Elements)),
	}
	if len(op.ServerSignature) > 0 {
		out.ServerSignature = bytesOf(op.ServerSignature)
	}
	if len(op.SignedMetadata) > 0 {
		out.SignedMetadata = bytesOf(op.SignedMetadata)
	}
	for i, e := range op.Elements {
		m := e.Mandate
		mj := mandateJSON{
			Recipient:          addressOf(m.Recipient),
			TokenOut:           pairsToJSON(m.TokenOut),
			DestinationChainID: numberOfUint(m.DestinationChainID),
			FillDeadline:       numberOf(m.FillDeadline),
			MinGas:             numberOf(m.MinGas),
			PreClaimOps:        opsToJSON(m.PreClaimOps),
			DestinationOps:     opsToJSON(m.DestinationOps),
			Qualifier: qualifierJSON{
				SettlementLayer: string(m.Qualifier.SettlementLayer),
				FundingMethod:   string(m.Qualifier.FundingMethod),
				Using7579:       m.Qualifier.Using7579,
				EncodedVal:      bytesOf(m.Qualifier.EncodedVal),
			},
			MaxFeeBps: m.MaxFeeBps,
		}
		if m.DepositID != nil {
			mj.DepositID = numberOf(m.DepositID)
		}
		if m.UserOpHash != (common.Hash{}) {
			mj.UserOpHash = m.UserOpHash.Hex()
		}
		out.Elements[i] = elementJSON{
			Arbiter:       addressOf(e.Arbiter),
			ChainID:       numberOfUint(e.ChainID),
			IdsAndAmounts: pairsToJSON(e.IdsAndAmounts),
			Mandate:       mj,
		}
	}
	return out
}

// Model converts a wire bundle to the domain model
func (j *IntentOpJSON) Model() (*models.IntentOp, error) {
	sponsor, err := parseAddress(j.Sponsor)
	if err != nil {
		return nil, fmt.Errorf("sponsor: %v", err)
	}
	nonce, err := j.Nonce.Big()
	if err != nil {
		return nil, fmt.Errorf("nonce: %v", err)
	}
	expires, err := j.Expires.Big()
	if err != nil {
		return nil, fmt.Errorf("expires: %v", err)
	}
	serverSig, err := parseBytes(j.ServerSignature)
	if err != nil {
		return nil, fmt.Errorf("server signature: %v", err)
	}
	metadata, err := parseBytes(j.SignedMetadata)
	if err != nil {
		return nil, fmt.Errorf("signed metadata: %v", err)
	}

	op := &models.IntentOp{
		Sponsor:         sponsor,
		Nonce:           nonce,
		Expires:         expires,
		Elements:        make([]models.Element, len(j.Elements)),
		ServerSignature: serverSig,
		SignedMetadata:  metadata,
	}
	for i, e := range j.Elements {
		el, err := e.model()
		if err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
		op.Elements[i] = *el
	}
	return op, nil
}

func (e *elementJSON) model() (*models.Element, error) {
	arbiter, err := parseAddress(e.Arbiter)
	if err != nil {
		return nil, fmt.Errorf("arbiter: %v", err)
	}
	chainID, err := e.ChainID.Uint64()
	if err != nil {
		return nil, fmt.Errorf("chain id: %v", err)
	}
	idsAndAmounts, err := pairsFromJSON(e.IdsAndAmounts)
	if err != nil {
		return nil, fmt.Errorf("ids and amounts: %v", err)
	}

	m := e.Mandate
	recipient, err := parseAddress(m.Recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %v", err)
	}
	tokenOut, err := pairsFromJSON(m.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("token out: %v", err)
	}
	destination, err := m.DestinationChainID.Uint64()
	if err != nil {
		return nil, fmt.Errorf("destination chain id: %v", err)
	}
	fillDeadline, err := m.FillDeadline.Big()
	if err != nil {
		return nil, fmt.Errorf("fill deadline: %v", err)
	}
	minGas, err := m.MinGas.Big()
	if err != nil {
		return nil, fmt.Errorf("min gas: %v", err)
	}
	preClaim, err := opsFromJSON(m.PreClaimOps)
	if err != nil {
		return nil, fmt.Errorf("pre-claim ops: %v", err)
	}
	destOps, err := opsFromJSON(m.DestinationOps)
	if err != nil {
		return nil, fmt.Errorf("destination ops: %v", err)
	}
	encodedVal, err := parseBytes(m.Qualifier.EncodedVal)
	if err != nil {
		return nil, fmt.Errorf("qualifier: %v", err)
	}
	var depositID *big.Int
	if m.DepositID != "" {
		if depositID, err = m.DepositID.Big(); err != nil {
			return nil, fmt.Errorf("deposit id: %v", err)
		}
	}
	userOpHash, err := parseHash(m.UserOpHash)
	if err != nil {
		return nil, fmt.Errorf("user op hash: %v", err)
	}

	return &models.Element{
		Arbiter:       arbiter,
		ChainID:       chainID,
		IdsAndAmounts: idsAndAmounts,
		Mandate: models.Mandate{
			Recipient:          recipient,
			TokenOut:           tokenOut,
			DestinationChainID: destination,
			FillDeadline:       fillDeadline,
			MinGas:             minGas,
			PreClaimOps:        preClaim,
			DestinationOps:     destOps,
			Qualifier: models.Qualifier{
				SettlementLayer: models.SettlementLayer(m.Qualifier.SettlementLayer),
				FundingMethod:   models.FundingMethod(m.Qualifier.FundingMethod),
				Using7579:       m.Qualifier.Using7579,
				EncodedVal:      encodedVal,
			},
			DepositID:  depositID,
			UserOpHash: userOpHash,
			MaxFeeBps:  m.MaxFeeBps,
		},
	}, nil
}

// UserOpJSON is an unpacked v0.7 user operation on the wire
type UserOpJSON struct {
	Sender                        string `json:"sender"`
	Nonce                         Number `json:"nonce"`
	Factory                       string `json:"factory,omitempty"`
	FactoryData                   string `json:"factoryData,omitempty"`
	CallData                      string `json:"callData"`
	CallGasLimit                  Number `json:"callGasLimit"`
	VerificationGasLimit          Number `json:"verificationGasLimit"`
	PreVerificationGas            Number `json:"preVerificationGas"`
	MaxFeePerGas                  Number `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          Number `json:"maxPriorityFeePerGas"`
	Paymaster                     string `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit Number `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       Number `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 string `json:"paymasterData,omitempty"`
	Signature                     string `json:"signature"`
}

// UserOpToJSON converts a user operation to its wire form
func UserOpToJSON(op *models.UserOperation) *UserOpJSON {
	out := &UserOpJSON{
		Sender:               addressOf(op.Sender),
		Nonce:                numberOf(op.Nonce),
		CallData:             bytesOf(op.CallData),
		CallGasLimit:         numberOf(op.CallGasLimit),
		VerificationGasLimit: numberOf(op.VerificationGasLimit),
		PreVerificationGas:   numberOf(op.PreVerificationGas),
		MaxFeePerGas:         numberOf(op.MaxFeePerGas),
		MaxPriorityFeePerGas: numberOf(op.MaxPriorityFeePerGas),
		Signature:            bytesOf(op.Signature),
	}
	if op.HasFactory() {
		out.Factory = addressOf(op.Factory)
		out.FactoryData = bytesOf(op.FactoryData)
	}
	if op.HasPaymaster() {
		out.Paymaster = addressOf(op.Paymaster)
		out.PaymasterVerificationGasLimit = numberOf(op.PaymasterVerificationGasLimit)
		out.PaymasterPostOpGasLimit = numberOf(op.PaymasterPostOpGasLimit)
		out.PaymasterData = bytesOf(op.PaymasterData)
	}
	return out
}

// InitData deploys an account that has no code yet
type InitData struct {
	Factory     common.Address
	FactoryData []byte
}

type initDataJSON struct {
	Factory     string `json:"factory"`
	FactoryData string `json:"factoryData"`
}

func initDataToJSON(d *InitData) *initDataJSON {
	if d == nil {
		return nil
	}
	return &initDataJSON{Factory: addressOf(d.Factory), FactoryData: bytesOf(d.FactoryData)}
}

// AccessList limits the chains and tokens the backend may spend from
type AccessList struct {
	ChainIDs []uint64
	Tokens   []common.Address
}

// RouteRequest asks the backend for a bundle and its cost
type RouteRequest struct {
	Account            common.Address
	InitData           *InitData
	DestinationChainID uint64
	Calls              []models.Call
	TokenRequests      []models.TokenRequest
	AccessList         *AccessList
	// DestinationGasUnits is the gas the destination calls need, nil to let the backend estimate
	DestinationGasUnits *big.Int
	// Sponsored asks the backend to sponsor gas and bridging fees
	Sponsored bool
}

type accountJSON struct {
	Address  string        `json:"address"`
	InitData *initDataJSON `json:"initData,omitempty"`
}

type tokenRequestJSON struct {
	TokenAddress string `json:"tokenAddress"`
	Amount       Number `json:"amount"`
}

type accessListJSON struct {
	ChainIDs []Number `json:"chainIds,omitempty"`
	Tokens   []string `json:"tokens,omitempty"`
}

type routeRequestJSON struct {
	Account               accountJSON        `json:"account"`
	DestinationChainID    Number             `json:"destinationChainId"`
	DestinationExecutions []CallJSON         `json:"destinationExecutions"`
	TokenRequests         []tokenRequestJSON `json:"tokenRequests"`
	AccountAccessList     *accessListJSON    `json:"accountAccessList,omitempty"`
	DestinationGasUnits   Number             `json:"destinationGasUnits,omitempty"`
	Options               *routeOptionsJSON  `json:"options,omitempty"`
}

type sponsorSettingsJSON struct {
	GasSponsored        bool `json:"gasSponsored"`
	BridgeFeesSponsored bool `json:"bridgeFeesSponsored"`
}

type routeOptionsJSON struct {
	SponsorSettings *sponsorSettingsJSON `json:"sponsorSettings,omitempty"`
}

func (r *RouteRequest) toJSON() *routeRequestJSON {
	out := &routeRequestJSON{
		Account:               accountJSON{Address: addressOf(r.Account), InitData: initDataToJSON(r.InitData)},
		DestinationChainID:    numberOfUint(r.DestinationChainID),
		DestinationExecutions: callsToJSON(r.Calls),
		TokenRequests:         make([]tokenRequestJSON, len(r.TokenRequests)),
	}
	for i, t := range r.TokenRequests {
		out.TokenRequests[i] = tokenRequestJSON{TokenAddress: addressOf(t.Token), Amount: numberOf(t.Amount)}
	}
	if r.AccessList != nil {
		al := &accessListJSON{}
		for _, id := range r.AccessList.ChainIDs {
			al.ChainIDs = append(al.ChainIDs, numberOfUint(id))
		}
		for _, t := range r.AccessList.Tokens {
			al.Tokens = append(al.Tokens, addressOf(t))
		}
		out.AccountAccessList = al
	}
	if r.DestinationGasUnits != nil {
		out.DestinationGasUnits = numberOf(r.DestinationGasUnits)
	}
	if r.Sponsored {
		out.Options = &routeOptionsJSON{SponsorSettings: &sponsorSettingsJSON{GasSponsored: true, BridgeFeesSponsored: true}}
	}
	return out
}

// TokenReceived is an amount delivered on the destination chain
type TokenReceived struct {
	Token  common.Address
	Amount *big.Int
}

// Cost is the backend's cost breakdown of a route
type Cost struct {
	HasFulfilledAll bool
	// TokensSpent maps origin chain to token to amount
	TokensSpent    map[uint64]map[common.Address]*big.Int
	TokensReceived []TokenReceived
}

// Route is a candidate bundle with its cost
type Route struct {
	IntentOp *models.IntentOp
	Cost     Cost
	// InjectedExecutions must run before the caller's destination calls
	InjectedExecutions []models.Call
}

type costJSON struct {
	HasFulfilledAll bool                         `json:"hasFulfilledAll"`
	TokensSpent     map[string]map[string]Number `json:"tokensSpent"`
	TokensReceived  []tokenRequestJSON           `json:"tokensReceived"`
}

type routeResponseJSON struct {
	IntentOp           *IntentOpJSON `json:"intentOp"`
	IntentCost         costJSON      `json:"intentCost"`
	InjectedExecutions []CallJSON    `json:"injectedExecutions"`
}

func (r *routeResponseJSON) model() (*Route, error) {
	route := &Route{Cost: Cost{
		HasFulfilledAll: r.IntentCost.HasFulfilledAll,
		TokensSpent:     make(map[uint64]map[common.Address]*big.Int),
	}}
	if r.IntentOp != nil {
		op, err := r.IntentOp.Model()
		if err != nil {
			return nil, fmt.Errorf("invalid intent op: %v", err)
		}
		route.IntentOp = op
	}
	for chain, tokens := range r.IntentCost.TokensSpent {
		chainID, err := Number(chain).Uint64()
		if err != nil {
			return nil, fmt.Errorf("invalid spent chain: %v", err)
		}
		spent := make(map[common.Address]*big.Int, len(tokens))
		for token, amount := range tokens {
			addr, err := parseAddress(token)
			if err != nil {
				return nil, fmt.Errorf("invalid spent token: %v", err)
			}
			if spent[addr], err = amount.Big(); err != nil {
				return nil, fmt.Errorf("invalid spent amount: %v", err)
			}
		}
		route.Cost.TokensSpent[chainID] = spent
	}
	for _, t := range r.IntentCost.TokensReceived {
		addr, err := parseAddress(t.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid received token: %v", err)
		}
		amount, err := t.Amount.Big()
		if err != nil {
			return nil, fmt.Errorf("invalid received amount: %v", err)
		}
		route.Cost.TokensReceived = append(route.Cost.TokensReceived, TokenReceived{Token: addr, Amount: amount})
	}
	injected, err := callsFromJSON(r.InjectedExecutions)
	if err != nil {
		return nil, fmt.Errorf("invalid injected executions: %v", err)
	}
	route.InjectedExecutions = injected
	return route, nil
}

// SignedIntentOp is a bundle with one packed signature per origin element and one for the destination
type SignedIntentOp struct {
	Op                   *models.IntentOp
	OriginSignatures     [][]byte
	DestinationSignature []byte
	InitData             *InitData
	UserOp               *models.UserOperation
}

type signedIntentOpJSON struct {
	*IntentOpJSON
	OriginSignatures     []string `json:"originSignatures"`
	DestinationSignature string   `json:"destinationSignature"`
}

type submitRequestJSON struct {
	SignedIntentOp signedIntentOpJSON `json:"signedIntentOp"`
	InitData       *initDataJSON      `json:"initData,omitempty"`
	UserOp         *UserOpJSON        `json:"userOp,omitempty"`
}

func (s *SignedIntentOp) toJSON() *submitRequestJSON {
	sigs := make([]string, len(s.OriginSignatures))
	for i, sig := range s.OriginSignatures {
		sigs[i] = bytesOf(sig)
	}
	out := &submitRequestJSON{
		SignedIntentOp: signedIntentOpJSON{
			IntentOpJSON:         IntentOpToJSON(s.Op),
			OriginSignatures:     sigs,
			DestinationSignature: bytesOf(s.DestinationSignature),
		},
		InitData: initDataToJSON(s.InitData),
	}
	if s.UserOp != nil {
		out.UserOp = UserOpToJSON(s.UserOp)
	}
	return out
}

// ID is a backend identifier sent as a JSON string or number
type ID string

// UnmarshalJSON accepts both string and numeric ids
func (id *ID) UnmarshalJSON(data []byte) error {
	var n Number
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// SubmitResult is the backend's answer to a submission
type SubmitResult struct {
	ID string
}

type submitResponseJSON struct {
	Result struct {
		ID ID `json:"id"`
	} `json:"result"`
}

// Claim is the settlement of one origin element
type Claim struct {
	ChainID uint64
	Status  models.Status
	TxHash  common.Hash
}

// IntentStatus is the state of a submitted bundle
type IntentStatus struct {
	Status              models.Status
	FillTransactionHash common.Hash
	Claims              []Claim
}

type claimJSON struct {
	ChainID              Number `json:"chainId"`
	Status               string `json:"status"`
	ClaimTransactionHash string `json:"claimTransactionHash"`
}

type statusResponseJSON struct {
	Status              string      `json:"status"`
	FillTransactionHash string      `json:"fillTransactionHash"`
	Claims              []claimJSON `json:"claims"`
}

func (s *statusResponseJSON) model() (*IntentStatus, error) {
	fill, err := parseHash(s.FillTransactionHash)
	if err != nil {
		return nil, fmt.Errorf("invalid fill transaction hash: %v", err)
	}
	out := &IntentStatus{Status: models.ParseStatus(s.Status), FillTransactionHash: fill}
	for _, c := range s.Claims {
		chainID, err := c.ChainID.Uint64()
		if err != nil {
			return nil, fmt.Errorf("invalid claim chain: %v", err)
		}
		hash, err := parseHash(c.ClaimTransactionHash)
		if err != nil {
			return nil, fmt.Errorf("invalid claim transaction hash: %v", err)
		}
		out.Claims = append(out.Claims, Claim{ChainID: chainID, Status: models.ParseStatus(c.Status), TxHash: hash})
	}
	return out, nil
}

// BundleEvent is a lifecycle event of a pending bundle
type BundleEvent struct {
	Type      string
	BundleID  string
	ChainID   uint64
	TxHash    common.Hash
	Timestamp uint64
}

type bundleEventJSON struct {
	Type      string `json:"type"`
	BundleID  ID     `json:"bundleId"`
	ChainID   Number `json:"chainId"`
	TxHash    string `json:"txHash"`
	Timestamp Number `json:"timestamp"`
}

type eventsResponseJSON struct {
	Events []bundleEventJSON `json:"events"`
}

func (r *eventsResponseJSON) model() ([]BundleEvent, error) {
	out := make([]BundleEvent, 0, len(r.Events))
	for i, e := range r.Events {
		chainID, err := e.ChainID.Uint64()
		if err != nil {
			return nil, fmt.Errorf("event %d: %v", i, err)
		}
		hash, err := parseHash(e.TxHash)
		if err != nil {
			return nil, fmt.Errorf("event %d: %v", i, err)
		}
		ts, err := e.Timestamp.Uint64()
		if err != nil {
			return nil, fmt.Errorf("event %d: %v", i, err)
		}
		out = append(out, BundleEvent{Type: e.Type, BundleID: string(e.BundleID), ChainID: chainID, TxHash: hash, Timestamp: ts})
	}
	return out, nil
}

// ChainBalance is a token balance on one chain
type ChainBalance struct {
	ChainID  uint64
	Token    common.Address
	Locked   *big.Int
	Unlocked *big.Int
}

// PortfolioToken aggregates a token across chains
type PortfolioToken struct {
	Name     string
	Decimals uint8
	Locked   *big.Int
	Unlocked *big.Int
	Chains   []ChainBalance
}

type balanceJSON struct {
	Locked   Number `json:"locked"`
	Unlocked Number `json:"unlocked"`
}

func (b balanceJSON) parse() (*big.Int, *big.Int, error) {
	locked, err := b.Locked.Big()
	if err != nil {
		return nil, nil, err
	}
	unlocked, err := b.Unlocked.Big()
	if err != nil {
		return nil, nil, err
	}
	return locked, unlocked, nil
}

type portfolioResponseJSON struct {
	Portfolio []struct {
		TokenName         string      `json:"tokenName"`
		TokenDecimals     uint8       `json:"tokenDecimals"`
		Balance           balanceJSON `json:"balance"`
		TokenChainBalance []struct {
			ChainID      Number      `json:"chainId"`
			TokenAddress string      `json:"tokenAddress"`
			Balance      balanceJSON `json:"balance"`
		} `json:"tokenChainBalance"`
	} `json:"portfolio"`
}

func (r *portfolioResponseJSON) model() ([]PortfolioToken, error) {
	out := make([]PortfolioToken, 0, len(r.Portfolio))
	for _, t := range r.Portfolio {
		locked, unlocked, err := t.Balance.parse()
		if err != nil {
			return nil, fmt.Errorf("token %s: %v", t.TokenName, err)
		}
		token := PortfolioToken{Name: t.TokenName, Decimals: t.TokenDecimals, Locked: locked, Unlocked: unlocked}
		for _, c := range t.TokenChainBalance {
			chainID, err := c.ChainID.Uint64()
			if err != nil {
				return nil, fmt.Errorf("token %s: %v", t.TokenName, err)
			}
			addr, err := parseAddress(c.TokenAddress)
			if err != nil {
				return nil, fmt.Errorf("token %s: %v", t.TokenName, err)
			}
			cl, cu, err := c.Balance.parse()
			if err != nil {
				return nil, fmt.Errorf("token %s on %d: %v", t.TokenName, chainID, err)
			}
			token.Chains = append(token.Chains, ChainBalance{ChainID: chainID, Token: addr, Locked: cl, Unlocked: cu})
		}
		out = append(out, token)
	}
	return out, nil
}
