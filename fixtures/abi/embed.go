package abi

import _ "embed"

// Reference ERC ABIs in three tiers per standard: the mandatory core (min),
// the canonical standard surface (full, the unsuffixed files), and full plus
// widely adopted optional extensions (max). The registry parses and validates
// the tier relationship at construction.

//go:embed erc20_min.json
var ERC20Min []byte

//go:embed erc20.json
var ERC20 []byte

//go:embed erc20_max.json
var ERC20Max []byte

//go:embed erc721_min.json
var ERC721Min []byte

//go:embed erc721.json
var ERC721 []byte

//go:embed erc721_max.json
var ERC721Max []byte

//go:embed erc1155_min.json
var ERC1155Min []byte

//go:embed erc1155.json
var ERC1155 []byte

//go:embed erc1155_max.json
var ERC1155Max []byte
